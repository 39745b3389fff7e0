package domain

// Match types for similarity candidates.
const (
	MatchTypeVector      = "vector"
	MatchTypeAttribute   = "attribute"
	MatchTypePrecomputed = "precomputed"
	MatchTypePattern     = "pattern_derived"
)

// CounterEvidence is a signal that reduces assessed fraud risk for a match
// (3DS success, trusted device, AVS/CVV match, and so on).
type CounterEvidence struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"` // in (0,1]
}

// SimilarityMatch scores one candidate transaction against the current one.
// Score already includes freshness and risk weighting.
type SimilarityMatch struct {
	MatchID         string            `json:"matchId"`
	MatchType       string            `json:"matchType"`
	Score           float64           `json:"score"`
	Details         map[string]any    `json:"details,omitempty"`
	CounterEvidence []CounterEvidence `json:"counterEvidence,omitempty"`
}

// SimilarityResult keeps the top-5 matches by weighted score. OverallScore
// is their arithmetic mean, 0.0 when there are no matches.
type SimilarityResult struct {
	Matches         []SimilarityMatch `json:"matches"`
	OverallScore    float64           `json:"overallScore"`
	CounterEvidence []CounterEvidence `json:"counterEvidence,omitempty"`
}

// RecommendationCandidate is one ranked action for a human analyst.
// SignatureHash is the dedup key for downstream idempotent persistence.
type RecommendationCandidate struct {
	Type          string `json:"type"`
	Priority      int    `json:"priority"` // 1 = highest
	Title         string `json:"title"`
	Impact        string `json:"impact"`
	SignatureHash string `json:"signatureHash"`
}

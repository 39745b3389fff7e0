package domain

import (
	"time"
)

// Investigation is the complete result for one transaction investigation.
type Investigation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	TxID      string    `json:"txId"`
	Severity  Severity  `json:"severity"`
	Score     float64   `json:"score"` // weighted mean of pattern scores
	Timestamp time.Time `json:"timestamp"`

	PatternScores []PatternScore       `json:"patternScores"`
	Attributions  []FeatureAttribution `json:"attributions,omitempty"`
	Signals       []Signal             `json:"signals,omitempty"`
	Windows       map[int]WindowStats  `json:"windows,omitempty"`
	RuleMatches   []RuleMatch          `json:"ruleMatches,omitempty"`

	Similarity      *SimilarityResult         `json:"similarity,omitempty"`
	Recommendations []RecommendationCandidate `json:"recommendations"`
	Reasoning       *ReasoningResult          `json:"reasoning,omitempty"`

	Metadata InvestigationMetadata `json:"metadata"`
}

// InvestigationMetadata contains processing information.
type InvestigationMetadata struct {
	TraceID       string `json:"traceId"`
	FeaturesMs    int64  `json:"featuresMs"`
	PatternsMs    int64  `json:"patternsMs"`
	SimilarityMs  int64  `json:"similarityMs"`
	ReasoningMs   int64  `json:"reasoningMs,omitempty"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// InvestigationResponse is the API response for an investigation.
type InvestigationResponse struct {
	InvestigationID string                    `json:"investigationId"`
	TxID            string                    `json:"txId"`
	TenantID        string                    `json:"tenantId"`
	Severity        Severity                  `json:"severity"`
	Score           float64                   `json:"score"`
	PatternScores   []PatternScore            `json:"patternScores"`
	Attributions    []FeatureAttribution      `json:"attributions,omitempty"`
	SimilarityScore float64                   `json:"similarityScore"`
	Recommendations []RecommendationCandidate `json:"recommendations"`
	Reasoning       *ReasoningResult          `json:"reasoning,omitempty"`
	Metadata        InvestigationMetadata     `json:"metadata"`
}

// ToResponse converts an Investigation to its API shape.
func (inv *Investigation) ToResponse() *InvestigationResponse {
	resp := &InvestigationResponse{
		InvestigationID: inv.ID,
		TxID:            inv.TxID,
		TenantID:        inv.TenantID,
		Severity:        inv.Severity,
		Score:           inv.Score,
		PatternScores:   inv.PatternScores,
		Attributions:    inv.Attributions,
		Recommendations: inv.Recommendations,
		Reasoning:       inv.Reasoning,
		Metadata:        inv.Metadata,
	}
	if inv.Similarity != nil {
		resp.SimilarityScore = inv.Similarity.OverallScore
	}
	return resp
}

// InvestigateRequest is the API request payload for an investigation.
type InvestigateRequest struct {
	Transaction     Record   `json:"transaction"`
	CardHistory     []Record `json:"cardHistory,omitempty"`
	MerchantHistory []Record `json:"merchantHistory,omitempty"`
	Similar         []Record `json:"similar,omitempty"`
	Reviews         []Record `json:"reviews,omitempty"`
}

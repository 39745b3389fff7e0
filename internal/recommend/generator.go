// Package recommend maps pattern and similarity scores into ranked,
// human-readable action candidates for an analyst.
package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Recommendation types.
const (
	TypeManualReview   = "manual_review"
	TypeBlockCard      = "block_card"
	TypeRateLimit      = "rate_limit_card"
	TypeDeclineReview  = "review_declines"
	TypeMerchantReview = "review_merchant_spread"
	TypeAmountReview   = "verify_amount"
	TypeTimeReview     = "verify_session"
	TypeLinkedCases    = "review_linked_cases"
	TypeStandardReview = "standard_review"
)

// Input carries everything the rule table reads.
type Input struct {
	Context       *domain.TransactionContext
	Severity      domain.Severity
	PatternScores []domain.PatternScore
	Similarity    *domain.SimilarityResult
	Windows       map[int]domain.WindowStats
}

// Generate applies the rule table. Candidates may coexist; there is no
// global cap, and dedup happens downstream via each signature hash. If
// nothing fires, a single standard-review candidate is emitted.
func Generate(in Input) []domain.RecommendationCandidate {
	var out []domain.RecommendationCandidate
	scores := scoreMap(in.PatternScores)
	tc := in.Context

	if in.Severity == domain.SeverityCritical || in.Severity == domain.SeverityHigh {
		out = append(out, candidate(tc, TypeManualReview, 1,
			"Escalate for manual review",
			fmt.Sprintf("Severity %s on %.2f %s at merchant %s requires analyst sign-off",
				in.Severity, tc.Amount, tc.Currency, tc.MerchantID)))
	}

	if s := scores[domain.PatternCardTesting]; s >= 0.6 {
		out = append(out, candidate(tc, TypeBlockCard, 2,
			"Block card pending verification",
			fmt.Sprintf("Card testing score %.2f on card %s; small escalating probes precede larger charges", s, tc.CardID)))
	}

	if s := scores[domain.PatternVelocity]; s >= 0.6 {
		burst := in.Windows[1].Count
		out = append(out, candidate(tc, TypeRateLimit, 2,
			"Rate-limit the card",
			fmt.Sprintf("Velocity score %.2f with %d transactions in the last hour", s, burst)))
	}

	if s := scores[domain.PatternDeclineAnomaly]; s >= 0.5 {
		priority := 3
		title := "Review recent declines"
		if s >= 0.8 {
			priority = 2
			title = "Escalate decline pattern"
		}
		out = append(out, candidate(tc, TypeDeclineReview, priority, title,
			fmt.Sprintf("Decline anomaly score %.2f with %d declines in 24h", s, in.Windows[24].DeclineCount)))
	}

	if s := scores[domain.PatternCrossMerchant]; s >= 0.5 {
		out = append(out, candidate(tc, TypeMerchantReview, 3,
			"Review merchant spread",
			fmt.Sprintf("Cross-merchant score %.2f across %d merchants in 24h", s, in.Windows[24].UniqueMerchants)))
	}

	if s := scores[domain.PatternAmountAnomaly]; s >= 0.5 {
		out = append(out, candidate(tc, TypeAmountReview, 3,
			"Verify transaction amount",
			fmt.Sprintf("Amount anomaly score %.2f for %.2f %s", s, tc.Amount, tc.Currency)))
	}

	if s := scores[domain.PatternTimeAnomaly]; s >= 0.5 {
		out = append(out, candidate(tc, TypeTimeReview, 3,
			"Verify session origin",
			fmt.Sprintf("Time anomaly score %.2f; check session geography and hour", s)))
	}

	if in.Similarity != nil && in.Similarity.OverallScore >= 0.5 {
		out = append(out, candidate(tc, TypeLinkedCases, 3,
			"Review similar prior cases",
			fmt.Sprintf("Similarity score %.2f across %d linked transactions",
				in.Similarity.OverallScore, len(in.Similarity.Matches))))
	}

	if len(out) == 0 {
		out = append(out, candidate(tc, TypeStandardReview, 4,
			"Standard review",
			fmt.Sprintf("No elevated patterns for %.2f %s at merchant %s", tc.Amount, tc.Currency, tc.MerchantID)))
	}

	return out
}

func scoreMap(scores []domain.PatternScore) map[string]float64 {
	m := make(map[string]float64, len(scores))
	for _, p := range scores {
		m[p.Pattern] = p.Score
	}
	return m
}

func candidate(tc *domain.TransactionContext, typ string, priority int, title, impact string) domain.RecommendationCandidate {
	return domain.RecommendationCandidate{
		Type:          typ,
		Priority:      priority,
		Title:         title,
		Impact:        impact,
		SignatureHash: Signature(typ, tc.TxID, title),
	}
}

// Signature builds the stable dedup key for idempotent persistence.
func Signature(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

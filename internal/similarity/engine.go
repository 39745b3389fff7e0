// Package similarity scores a transaction against prior candidate
// transactions with freshness decay and counter-evidence-aware risk
// weighting.
package similarity

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// maxMatches is how many matches a result retains.
const maxMatches = 5

// counterEvidenceStrengths maps boolean candidate flags to fixed strengths.
// Stronger evidence discounts a match harder.
var counterEvidenceStrengths = []struct {
	Flag        string
	Type        string
	Description string
	Strength    float64
}{
	{"three_ds_success", "3ds_success", "3DS authentication succeeded", 0.8},
	{"recurring_customer", "recurring_customer", "Recurring customer relationship", 0.7},
	{"cardholder_present", "cardholder_present", "Cardholder was present", 0.7},
	{"trusted_device", "trusted_device", "Known trusted device", 0.6},
	{"tokenized_payment", "tokenized_payment", "Tokenized payment instrument", 0.6},
	{"avs_match", "avs_match", "AVS address match", 0.5},
	{"cvv_match", "cvv_match", "CVV verification match", 0.5},
	{"known_merchant", "known_merchant", "Previously seen merchant", 0.4},
}

// Engine scores similarity candidates.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a similarity engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Score evaluates the candidate set against the current transaction and
// keeps the top-5 matches by weighted score. The overall score is their
// arithmetic mean, 0.0 when there are no matches.
func (e *Engine) Score(tc *domain.TransactionContext, candidates []domain.Record) *domain.SimilarityResult {
	freshness := e.FreshnessWeight(tc.Timestamp)

	matches := make([]domain.SimilarityMatch, 0, len(candidates))
	for _, cand := range candidates {
		matches = append(matches, e.scoreCandidate(tc, cand, freshness))
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	result := &domain.SimilarityResult{Matches: matches}
	if len(matches) > 0 {
		var sum float64
		for _, m := range matches {
			sum += m.Score
		}
		result.OverallScore = sum / float64(len(matches))
	}
	result.CounterEvidence = aggregateCounterEvidence(matches)
	return result
}

// scoreCandidate computes one match: base score (precomputed or heuristic)
// times freshness times the outcome/counter-evidence risk multiplier.
func (e *Engine) scoreCandidate(tc *domain.TransactionContext, cand domain.Record, freshness float64) domain.SimilarityMatch {
	details := map[string]any{}

	base, matchType := baseScore(tc, cand, details)
	ce := ExtractCounterEvidence(cand)
	mult := RiskMultiplier(cand.String("status", "outcome"), ce)

	details["base_score"] = round2(base)
	details["freshness_weight"] = freshness
	details["risk_multiplier"] = round2(mult)

	return domain.SimilarityMatch{
		MatchID:         cand.String("transaction_id", "tx_id", "id", "match_id"),
		MatchType:       matchType,
		Score:           clamp01(base * freshness * mult),
		Details:         details,
		CounterEvidence: ce,
	}
}

// baseScore prefers a precomputed similarity score; otherwise it builds a
// heuristic from amount ratio, merchant, and card overlap.
func baseScore(tc *domain.TransactionContext, cand domain.Record, details map[string]any) (float64, string) {
	if s, ok := cand.Float("similarity_score", "score"); ok {
		if mt := cand.String("match_type"); mt != "" {
			return clamp01(s), mt
		}
		return clamp01(s), domain.MatchTypePrecomputed
	}

	var score float64
	candAmount, _ := cand.Float("amount")
	if tc.Amount > 0 && candAmount > 0 {
		ratio := math.Min(tc.Amount, candAmount) / math.Max(tc.Amount, candAmount)
		if ratio > 0.8 {
			score += 0.4 * ratio
			details["amount_ratio"] = round2(ratio)
		}
	}
	if m := cand.String("merchant_id", "merchantId"); m != "" && m == tc.MerchantID {
		score += 0.3
		details["same_merchant"] = true
	}
	if c := cand.String("card_id", "cardId"); c != "" && c == tc.CardID {
		score += 0.3
		details["same_card"] = true
	}
	return clamp01(score), domain.MatchTypeAttribute
}

// FreshnessWeight is a step function of the current transaction's age.
// Monotonically non-increasing across the buckets; 0.5 for an unknown
// timestamp.
func (e *Engine) FreshnessWeight(ts time.Time) float64 {
	if ts.IsZero() {
		return 0.5
	}
	age := e.now().Sub(ts)
	switch {
	case age < time.Hour:
		return 1.0
	case age < 6*time.Hour:
		return 0.9
	case age < 24*time.Hour:
		return 0.7
	case age < 7*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// RiskMultiplier discounts a match by its outcome and counter-evidence.
// Approved matches argue against fraud, declined ones argue for it.
func RiskMultiplier(outcome string, ce []domain.CounterEvidence) float64 {
	var mult float64
	switch outcome {
	case "approved":
		mult = 0.65
	case "declined":
		mult = 1.0
	default:
		mult = 0.85
	}

	if len(ce) > 0 {
		var sum float64
		for _, c := range ce {
			sum += c.Strength
		}
		avg := sum / float64(len(ce))
		mult *= math.Max(0.25, 1-avg*0.8)
	}

	return mult
}

// ExtractCounterEvidence reads the boolean indicator flags off a candidate.
func ExtractCounterEvidence(cand domain.Record) []domain.CounterEvidence {
	var out []domain.CounterEvidence
	for _, def := range counterEvidenceStrengths {
		if v, ok := cand.Bool(def.Flag); ok && v {
			out = append(out, domain.CounterEvidence{
				Type:        def.Type,
				Description: def.Description,
				Strength:    def.Strength,
			})
		}
	}
	return out
}

// aggregateCounterEvidence collects unique counter-evidence types across the
// kept matches, keeping the strongest instance of each.
func aggregateCounterEvidence(matches []domain.SimilarityMatch) []domain.CounterEvidence {
	byType := map[string]domain.CounterEvidence{}
	var order []string
	for _, m := range matches {
		for _, c := range m.CounterEvidence {
			prev, seen := byType[c.Type]
			if !seen {
				order = append(order, c.Type)
				byType[c.Type] = c
			} else if c.Strength > prev.Strength {
				byType[c.Type] = c
			}
		}
	}
	out := make([]domain.CounterEvidence, 0, len(order))
	for _, t := range order {
		out = append(out, byType[t])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

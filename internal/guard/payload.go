package guard

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// indicatorFields resolve the boolean indicators sent as evidence. Each is
// looked up in layers: explicit transaction field, then legacy alias, then
// the nested context map; anything unresolved reports "unknown".
var indicatorFields = []struct {
	Name    string
	Keys    []string // explicit, then legacy aliases
	Context []string // keys inside the nested context map
}{
	{"three_ds_success", []string{"three_ds_success", "3ds_success"}, []string{"three_ds", "3ds"}},
	{"trusted_device", []string{"trusted_device", "device_trusted"}, []string{"trusted_device"}},
	{"avs_match", []string{"avs_match", "avs_result_match"}, []string{"avs"}},
	{"cvv_match", []string{"cvv_match", "cvv_result_match"}, []string{"cvv"}},
	{"tokenized_payment", []string{"tokenized_payment", "is_tokenized"}, []string{"tokenized"}},
	{"recurring_customer", []string{"recurring_customer", "is_recurring"}, []string{"recurring"}},
	{"cardholder_present", []string{"cardholder_present", "card_present"}, []string{"cardholder_present"}},
	{"known_merchant", []string{"known_merchant", "merchant_known"}, []string{"known_merchant"}},
}

// EvidenceInput is the deterministic evidence the payload is built from.
type EvidenceInput struct {
	Context       *domain.TransactionContext
	Severity      domain.Severity
	WeightedScore float64
	PatternScores []domain.PatternScore
	Similarity    *domain.SimilarityResult
	Signals       []domain.Signal
	Windows       map[int]domain.WindowStats
	RuleMatches   []domain.RuleMatch
}

// AssemblePayload builds the flat evidence mapping that the redaction
// policy is then applied to. It is the only structure that crosses the
// trust boundary to the model.
func AssemblePayload(in EvidenceInput) map[string]any {
	tc := in.Context
	payload := map[string]any{
		"transaction_id": tc.TxID,
		"amount":         tc.Amount,
		"currency":       tc.Currency,
		"merchant_id":    tc.MerchantID,
		"card_id":        tc.CardID,
		"status":         tc.Status,
		"severity":       string(in.Severity),
		"weighted_score": in.WeightedScore,
	}
	if !tc.Timestamp.IsZero() {
		payload["transaction_timestamp"] = tc.Timestamp.UTC().Format(time.RFC3339)
	}
	if tc.DeclineReason != "" {
		payload["decline_reason"] = tc.DeclineReason
	}

	payload["pattern_summary"] = PatternSummary(in.PatternScores)

	if in.Similarity != nil {
		payload["similarity_score"] = in.Similarity.OverallScore
		payload["similarity_summary"] = similaritySummary(in.Similarity)
		if ce := counterEvidenceText(in.Similarity.CounterEvidence); len(ce) > 0 {
			payload["counter_evidence"] = ce
		}
	}

	if len(in.Signals) > 0 {
		lines := make([]string, 0, len(in.Signals))
		for _, s := range in.Signals {
			lines = append(lines, fmt.Sprintf("%s value %.2f", s.Name, s.Value))
		}
		payload["signals"] = lines
	}

	if len(in.Windows) > 0 {
		payload["window_summary"] = windowSummary(in.Windows)
	}

	if len(in.RuleMatches) > 0 {
		lines := make([]string, 0, len(in.RuleMatches))
		for _, m := range in.RuleMatches {
			if m.Matched() {
				lines = append(lines, fmt.Sprintf("rule %s matched: %s", m.RuleID, m.Reason))
			}
		}
		if len(lines) > 0 {
			payload["rule_matches"] = lines
		}
	}

	payload["indicators"] = ResolveIndicators(tc.Raw)

	return payload
}

// PatternSummary renders the deterministic pattern evidence lines. The
// consistency checker grounds model findings against these exact strings.
func PatternSummary(scores []domain.PatternScore) []string {
	lines := make([]string, 0, len(scores))
	for _, p := range scores {
		lines = append(lines, fmt.Sprintf("%s score %.2f", p.Pattern, p.Score))
	}
	return lines
}

// ResolveIndicators reads the boolean indicator set off the raw transaction
// record with the layered fallback. Values are "true", "false", or
// "unknown".
func ResolveIndicators(rec domain.Record) map[string]any {
	out := make(map[string]any, len(indicatorFields))
	for _, f := range indicatorFields {
		out[f.Name] = resolveIndicator(rec, f.Keys, f.Context)
	}
	return out
}

func resolveIndicator(rec domain.Record, keys, contextKeys []string) string {
	if rec == nil {
		return "unknown"
	}
	if v, ok := rec.Bool(keys...); ok {
		return boolWord(v)
	}
	if nested, ok := rec.Map("context", "auth_context"); ok {
		if v, ok := nested.Bool(contextKeys...); ok {
			return boolWord(v)
		}
	}
	return "unknown"
}

func boolWord(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func similaritySummary(sim *domain.SimilarityResult) []string {
	lines := make([]string, 0, len(sim.Matches))
	for _, m := range sim.Matches {
		lines = append(lines, fmt.Sprintf("match %s (%s) score %.2f", m.MatchID, m.MatchType, m.Score))
	}
	return lines
}

func counterEvidenceText(ce []domain.CounterEvidence) []string {
	lines := make([]string, 0, len(ce))
	for _, c := range ce {
		lines = append(lines, fmt.Sprintf("%s (strength %.1f)", c.Description, c.Strength))
	}
	return lines
}

func windowSummary(windows map[int]domain.WindowStats) []string {
	hours := make([]int, 0, len(windows))
	for h := range windows {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	lines := make([]string, 0, len(hours))
	for _, h := range hours {
		w := windows[h]
		lines = append(lines, fmt.Sprintf("%dh: %d txns, %d declines, %d merchants",
			h, w.Count, w.DeclineCount, w.UniqueMerchants))
	}
	return lines
}

// Package patterns implements the deterministic fraud pattern detectors,
// the severity classifier, and the feature attribution explainer.
package patterns

import (
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
)

// Detector weights. These are fixed policy, not tunables.
const (
	weightAmountAnomaly  = 0.35
	weightCardTesting    = 0.35
	weightTimeAnomaly    = 0.25
	weightVelocity       = 0.40
	weightDeclineAnomaly = 0.30
	weightCrossMerchant  = 0.30
)

// Default detector thresholds, overridable via ScoringConfig.Thresholds.
const (
	defAmountHigh       = 1000.0
	defAmountElevated   = 500.0
	defZScoreStrong     = 3.0
	defZScoreModerate   = 2.0
	defSpikeMultiple    = 3.0
	defEscalationFactor = 2.0
	defTestDeclineRate  = 0.5
	defMicroAmount      = 10.0
	defBurstStrong      = 10.0
	defBurstModerate    = 5.0
	defSustainedCount   = 20.0
	defDeclineStrong    = 0.5
	defDeclineModerate  = 0.3
	defMerchantStrong   = 10.0
	defMerchantModerate = 5.0
)

// Engine runs the six detectors in a fixed order. Detectors are pure: the
// same context and features always produce the same scores.
type Engine struct {
	thresholds   map[string]float64
	unusualHours map[int]bool
}

// NewEngine creates a pattern engine. cfg may be nil.
func NewEngine(cfg *domain.ScoringConfig) *Engine {
	e := &Engine{
		thresholds:   map[string]float64{},
		unusualHours: map[int]bool{},
	}
	hours := []int{0, 1, 2, 3, 4, 5}
	if cfg != nil {
		for k, v := range cfg.Thresholds {
			e.thresholds[k] = v
		}
		if len(cfg.UnusualHours) > 0 {
			hours = cfg.UnusualHours
		}
	}
	for _, h := range hours {
		e.unusualHours[h] = true
	}
	return e
}

func (e *Engine) threshold(key string, def float64) float64 {
	if v, ok := e.thresholds[key]; ok {
		return v
	}
	return def
}

// Score evaluates all detectors and returns one PatternScore per detector,
// in a stable order.
func (e *Engine) Score(tc *domain.TransactionContext, fs *domain.FeatureSet) []domain.PatternScore {
	return []domain.PatternScore{
		e.amountAnomaly(tc, fs),
		e.cardTesting(tc, fs),
		e.timeAnomaly(tc, fs),
		e.velocity(fs),
		e.declineAnomaly(fs),
		e.crossMerchant(fs),
	}
}

// amountAnomaly flags round numbers, high absolute amounts, z-score
// outliers against card history, and spikes against the 24h window average.
func (e *Engine) amountAnomaly(tc *domain.TransactionContext, fs *domain.FeatureSet) domain.PatternScore {
	details := map[string]any{}
	base := 0.0

	if features.IsRoundAmount(tc.Amount) {
		base += 0.3
		details["round_number"] = tc.Amount
	}

	if tc.Amount >= e.threshold("amount_high", defAmountHigh) {
		base += 0.5
		details["high_amount"] = tc.Amount
	} else if tc.Amount > e.threshold("amount_elevated", defAmountElevated) {
		base += 0.3
		details["elevated_amount"] = tc.Amount
	}

	score := math.Min(base, 1.0)

	// z-score against card history. A single amount has zero std-dev, so
	// this only contributes with two or more historical amounts.
	if z, ok := amountZScore(tc.Amount, fs.CardHistory); ok {
		details["z_score"] = round2(z)
		if z > e.threshold("zscore_strong", defZScoreStrong) {
			score = math.Max(score, 0.9)
		} else if z > e.threshold("zscore_moderate", defZScoreModerate) {
			score = math.Max(score, 0.7)
		}
	}

	// Spike against the 24h window average.
	if w24, ok := fs.Windows[24]; ok && w24.Count > 0 {
		avg := w24.TotalAmount / float64(w24.Count)
		if avg > 0 && tc.Amount > e.threshold("spike_multiple", defSpikeMultiple)*avg {
			score = math.Max(score, 0.7)
			details["spike_ratio"] = round2(tc.Amount / avg)
			details["window_avg"] = round2(avg)
		}
	}

	return domain.PatternScore{
		Pattern: domain.PatternAmountAnomaly,
		Score:   clamp01(score),
		Weight:  weightAmountAnomaly,
		Details: details,
	}
}

// cardTesting inspects same-card activity within ±60 minutes of the current
// transaction. Sub-scores combine via running maximum, not sum.
func (e *Engine) cardTesting(tc *domain.TransactionContext, fs *domain.FeatureSet) domain.PatternScore {
	details := map[string]any{}
	score := 0.0

	anchor := tc.Timestamp
	if anchor.IsZero() {
		anchor = time.Now().UTC()
	}

	// CardHistory is chronological; keep entries within ±60 minutes.
	var recent []domain.HistoryEntry
	for _, h := range fs.CardHistory {
		d := anchor.Sub(h.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= time.Hour {
			recent = append(recent, h)
		}
	}
	details["recent_count"] = len(recent)

	// Strictly increasing amount run ending more than 2x above its start.
	if len(recent) >= 2 {
		increasing := true
		for i := 1; i < len(recent); i++ {
			if recent[i].Amount <= recent[i-1].Amount {
				increasing = false
				break
			}
		}
		first, last := recent[0].Amount, recent[len(recent)-1].Amount
		if increasing && first > 0 && last > e.threshold("escalation_factor", defEscalationFactor)*first {
			score = math.Max(score, 0.8)
			details["escalation_first"] = first
			details["escalation_last"] = last
		}
	}

	// Decline rate over the recent attempts.
	if len(recent) >= 2 {
		declined := 0
		for _, h := range recent {
			if h.Status == "declined" {
				declined++
			}
		}
		rate := float64(declined) / float64(len(recent))
		if rate >= e.threshold("testing_decline_rate", defTestDeclineRate) {
			score = math.Max(score, 0.7)
			details["decline_rate"] = round2(rate)
		}
	}

	// Distinct merchants among recent attempts plus the current one.
	merchants := map[string]struct{}{}
	if tc.MerchantID != "" {
		merchants[tc.MerchantID] = struct{}{}
	}
	for _, h := range recent {
		if h.MerchantID != "" {
			merchants[h.MerchantID] = struct{}{}
		}
	}
	if len(merchants) >= 3 {
		score = math.Max(score, 0.6)
		details["merchant_count"] = len(merchants)
	}

	// Micro-amount probes preceding the current one.
	micro := 0
	for _, h := range recent {
		if h.Amount < e.threshold("micro_amount", defMicroAmount) {
			micro++
		}
	}
	if micro >= 2 && tc.Amount < e.threshold("micro_amount", defMicroAmount) {
		score = math.Max(score, 0.7)
		details["micro_count"] = micro
	}

	return domain.PatternScore{
		Pattern: domain.PatternCardTesting,
		Score:   clamp01(score),
		Weight:  weightCardTesting,
		Details: details,
	}
}

// timeAnomaly scores unusual-hour activity and geography mismatches.
func (e *Engine) timeAnomaly(tc *domain.TransactionContext, fs *domain.FeatureSet) domain.PatternScore {
	details := map[string]any{}
	score := 0.0

	if tc.Timestamp.IsZero() {
		return domain.PatternScore{
			Pattern: domain.PatternTimeAnomaly,
			Score:   0,
			Weight:  weightTimeAnomaly,
			Details: details,
		}
	}

	hour := tc.Timestamp.UTC().Hour()
	details["hour"] = hour

	if e.unusualHours[hour] {
		score = math.Max(score, 0.4)
		details["unusual_hour"] = true
	}

	// High-risk merchant active in the overnight block. The hour set here
	// is fixed policy, independent of the configurable unusual-hour set.
	if tc.MerchantRiskCategory == "high" && hour >= 0 && hour <= 5 {
		score = math.Max(score, 0.8)
		details["merchant_risk"] = tc.MerchantRiskCategory
	}

	if tc.IPCountry != "" && tc.CardCountry != "" && tc.IPCountry != tc.CardCountry {
		score = math.Max(score, 0.9)
		details["ip_country"] = tc.IPCountry
		details["card_country"] = tc.CardCountry
	}

	// Hour never seen across a meaningful history.
	if len(fs.History) >= 5 {
		seen := false
		for _, h := range fs.History {
			if !h.Timestamp.IsZero() && h.Timestamp.UTC().Hour() == hour {
				seen = true
				break
			}
		}
		if !seen {
			score = math.Max(score, 0.6)
			details["hour_unseen"] = true
		}
	}

	return domain.PatternScore{
		Pattern: domain.PatternTimeAnomaly,
		Score:   clamp01(score),
		Weight:  weightTimeAnomaly,
		Details: details,
	}
}

// velocity scores short-window transaction bursts.
func (e *Engine) velocity(fs *domain.FeatureSet) domain.PatternScore {
	details := map[string]any{}
	score := 0.0

	w1 := fs.Windows[1]
	w6 := fs.Windows[6]
	details["burst_1h"] = w1.Count
	details["count_6h"] = w6.Count

	c1 := float64(w1.Count)
	if c1 > e.threshold("burst_strong", defBurstStrong) {
		score = math.Max(score, 0.9)
	} else if c1 > e.threshold("burst_moderate", defBurstModerate) {
		score = math.Max(score, 0.6)
	}

	if float64(w6.Count) > e.threshold("sustained_count", defSustainedCount) {
		score = math.Max(score, 0.8)
	}

	if fs.HasSignal("burst_1h") {
		score = math.Max(score, 0.7)
	}

	return domain.PatternScore{
		Pattern: domain.PatternVelocity,
		Score:   clamp01(score),
		Weight:  weightVelocity,
		Details: details,
	}
}

// declineAnomaly scores the 24h decline ratio.
func (e *Engine) declineAnomaly(fs *domain.FeatureSet) domain.PatternScore {
	details := map[string]any{}
	score := 0.0

	w24 := fs.Windows[24]
	details["decline_count"] = w24.DeclineCount

	if w24.Count > 0 {
		ratio := float64(w24.DeclineCount) / float64(w24.Count)
		details["decline_ratio"] = round2(ratio)
		if ratio > e.threshold("decline_strong", defDeclineStrong) {
			score = math.Max(score, 0.9)
		} else if ratio > e.threshold("decline_moderate", defDeclineModerate) {
			score = math.Max(score, 0.6)
		}
	}

	if fs.HasSignal("high_decline_rate") {
		score = math.Max(score, 0.7)
	}

	return domain.PatternScore{
		Pattern: domain.PatternDeclineAnomaly,
		Score:   clamp01(score),
		Weight:  weightDeclineAnomaly,
		Details: details,
	}
}

// crossMerchant scores 24h merchant spread.
func (e *Engine) crossMerchant(fs *domain.FeatureSet) domain.PatternScore {
	details := map[string]any{}
	score := 0.0

	w24 := fs.Windows[24]
	details["unique_merchants"] = w24.UniqueMerchants

	m := float64(w24.UniqueMerchants)
	if m > e.threshold("merchant_strong", defMerchantStrong) {
		score = 0.8
	} else if m > e.threshold("merchant_moderate", defMerchantModerate) {
		score = 0.5
	}

	return domain.PatternScore{
		Pattern: domain.PatternCrossMerchant,
		Score:   clamp01(score),
		Weight:  weightCrossMerchant,
		Details: details,
	}
}

// amountZScore computes the z-score of amount against the card history.
// ok is false when the history cannot support a std-dev (fewer than two
// amounts, or zero variance).
func amountZScore(amount float64, history []domain.HistoryEntry) (float64, bool) {
	if len(history) < 2 {
		return 0, false
	}
	var sum float64
	for _, h := range history {
		sum += h.Amount
	}
	mean := sum / float64(len(history))

	var variance float64
	for _, h := range history {
		d := h.Amount - mean
		variance += d * d
	}
	variance /= float64(len(history))
	if variance == 0 {
		return 0, false
	}
	return (amount - mean) / math.Sqrt(variance), true
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

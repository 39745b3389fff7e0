// Package features turns raw transaction history into time-windowed
// statistics and discrete signals for the pattern scoring engine.
package features

import (
	"math"
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Window sizes, in hours, computed for every investigation.
var WindowHours = []int{1, 6, 24, 72}

// Default signal thresholds. Each is overridable through
// ScoringConfig.Thresholds under the same key.
const (
	defaultElevatedAmount = 500.0
	defaultHighAmount     = 1000.0
	defaultVelocityScore  = 70.0
	defaultFraudScore     = 60.0
	defaultBurstCount     = 5.0
	defaultDeclineCount   = 3.0
	defaultRoundTolerance = 0.01
)

// RoundAmounts is the fixed threshold set for round-number detection.
// An amount is round when it equals a member exactly or sits at the
// ".99" position just below one (e.g. 499.99 for 500).
var RoundAmounts = []float64{100, 200, 250, 500, 1000, 1500, 2000, 2500, 5000, 10000}

// Extractor computes window statistics and signals.
type Extractor struct {
	thresholds map[string]float64
}

// NewExtractor creates an extractor. cfg may be nil; absent threshold keys
// fall back to the built-in defaults.
func NewExtractor(cfg *domain.ScoringConfig) *Extractor {
	e := &Extractor{thresholds: map[string]float64{}}
	if cfg != nil {
		for k, v := range cfg.Thresholds {
			e.thresholds[k] = v
		}
	}
	return e
}

func (e *Extractor) threshold(key string, def float64) float64 {
	if v, ok := e.thresholds[key]; ok {
		return v
	}
	return def
}

// Input bundles the raw collaborator data for one investigation.
type Input struct {
	Context         *domain.TransactionContext
	CardHistory     []domain.Record
	MerchantHistory []domain.Record
	RuleMatches     []domain.RuleMatch
	Reviews         []domain.Record
}

// Extract computes the feature set for a transaction. Absent inputs default
// to empty; extraction itself never fails.
func (e *Extractor) Extract(in Input) *domain.FeatureSet {
	anchor := in.Context.Timestamp
	if anchor.IsZero() {
		anchor = time.Now().UTC()
	}

	card := liftEntries(in.CardHistory)
	merchant := liftEntries(in.MerchantHistory)
	merged := dedupEntries(append(append([]domain.HistoryEntry{}, card...), merchant...))

	sort.Slice(card, func(i, j int) bool { return card[i].Timestamp.Before(card[j].Timestamp) })

	fs := &domain.FeatureSet{
		Windows:     make(map[int]domain.WindowStats, len(WindowHours)),
		History:     merged,
		CardHistory: card,
		RuleMatches: in.RuleMatches,
		Reviews:     in.Reviews,
	}

	for _, h := range WindowHours {
		fs.Windows[h] = computeWindow(merged, anchor, h)
	}

	fs.Signals = e.deriveSignals(in.Context, fs)
	return fs
}

// liftEntries converts raw records to typed history entries.
func liftEntries(recs []domain.Record) []domain.HistoryEntry {
	entries := make([]domain.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, domain.NewHistoryEntry(r))
	}
	return entries
}

// dedupEntries removes duplicates across overlapping card and merchant
// histories so a shared transaction never double-counts.
func dedupEntries(entries []domain.HistoryEntry) []domain.HistoryEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		key := e.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// computeWindow aggregates entries inside [anchor-window, anchor].
func computeWindow(entries []domain.HistoryEntry, anchor time.Time, hours int) domain.WindowStats {
	stats := domain.WindowStats{WindowHours: hours}
	cutoff := anchor.Add(-time.Duration(hours) * time.Hour)

	merchants := map[string]struct{}{}
	cards := map[string]struct{}{}

	for _, e := range entries {
		if e.Timestamp.Before(cutoff) || e.Timestamp.After(anchor) {
			continue
		}
		stats.Count++
		stats.TotalAmount += e.Amount
		if e.Status == "declined" {
			stats.DeclineCount++
		}
		if e.MerchantID != "" {
			merchants[e.MerchantID] = struct{}{}
		}
		if e.CardID != "" {
			cards[e.CardID] = struct{}{}
		}
	}

	stats.UniqueMerchants = len(merchants)
	stats.UniqueCards = len(cards)
	return stats
}

// deriveSignals produces the discrete threshold observations.
func (e *Extractor) deriveSignals(tc *domain.TransactionContext, fs *domain.FeatureSet) []domain.Signal {
	var signals []domain.Signal
	add := func(name string, value, weight float64) {
		signals = append(signals, domain.Signal{Name: name, Value: value, Weight: weight})
	}

	if tc.Amount > e.threshold("signal_high_amount", defaultHighAmount) {
		add("high_amount", tc.Amount, 0.4)
	} else if tc.Amount > e.threshold("signal_elevated_amount", defaultElevatedAmount) {
		add("elevated_amount", tc.Amount, 0.25)
	}

	if tc.VelocityScore > e.threshold("signal_velocity_score", defaultVelocityScore) {
		add("high_velocity_score", tc.VelocityScore, 0.3)
	}
	if tc.FraudScore > e.threshold("signal_fraud_score", defaultFraudScore) {
		add("high_fraud_score", tc.FraudScore, 0.3)
	}

	if w1, ok := fs.Windows[1]; ok && float64(w1.Count) > e.threshold("signal_burst_count", defaultBurstCount) {
		add("burst_1h", float64(w1.Count), 0.35)
	}
	if w24, ok := fs.Windows[24]; ok && float64(w24.DeclineCount) > e.threshold("signal_decline_count", defaultDeclineCount) {
		add("high_decline_rate", float64(w24.DeclineCount), 0.35)
	}

	if IsRoundAmount(tc.Amount) {
		add("round_amount", tc.Amount, 0.2)
	}

	matched := 0
	for _, m := range fs.RuleMatches {
		if m.Matched() {
			matched++
		}
	}
	if matched > 0 {
		add("rule_match", float64(matched), 0.3)
	}
	if len(fs.Reviews) > 0 {
		add("under_review", float64(len(fs.Reviews)), 0.2)
	}

	return signals
}

// IsRoundAmount reports membership of the fixed round-number set, either
// exactly or at the ".99" position just below a member.
func IsRoundAmount(amount float64) bool {
	for _, r := range RoundAmounts {
		if math.Abs(amount-r) < defaultRoundTolerance {
			return true
		}
		if math.Abs(amount-(r-0.01)) < defaultRoundTolerance {
			return true
		}
	}
	return false
}

package patterns

import (
	"math"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

// full builds a six-score list with the production weights; unnamed
// detectors score zero.
func full(scores map[string]float64) []domain.PatternScore {
	weights := map[string]float64{
		domain.PatternAmountAnomaly:  0.35,
		domain.PatternCardTesting:    0.35,
		domain.PatternTimeAnomaly:    0.25,
		domain.PatternVelocity:       0.40,
		domain.PatternDeclineAnomaly: 0.30,
		domain.PatternCrossMerchant:  0.30,
	}
	out := make([]domain.PatternScore, 0, len(weights))
	for _, name := range []string{
		domain.PatternAmountAnomaly,
		domain.PatternCardTesting,
		domain.PatternTimeAnomaly,
		domain.PatternVelocity,
		domain.PatternDeclineAnomaly,
		domain.PatternCrossMerchant,
	} {
		out = append(out, domain.PatternScore{
			Pattern: name,
			Score:   scores[name],
			Weight:  weights[name],
		})
	}
	return out
}

func TestWeightedMean(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if got := WeightedMean(nil); got != 0 {
			t.Errorf("expected 0 for empty scores, got %.2f", got)
		}
	})

	t.Run("ZeroWeights", func(t *testing.T) {
		scores := []domain.PatternScore{{Pattern: "x", Score: 0.9, Weight: 0}}
		if got := WeightedMean(scores); got != 0 {
			t.Errorf("expected 0 for zero total weight, got %.2f", got)
		}
	})

	t.Run("AllPatterns", func(t *testing.T) {
		scores := full(map[string]float64{
			domain.PatternAmountAnomaly: 0.8,
			domain.PatternVelocity:      0.9,
		})
		// (0.35*0.8 + 0.40*0.9) / 1.95
		want := (0.35*0.8 + 0.40*0.9) / 1.95
		if got := WeightedMean(scores); math.Abs(got-want) > 1e-9 {
			t.Errorf("expected %.4f, got %.4f", want, got)
		}
	})
}

func TestClassify(t *testing.T) {
	t.Run("CriticalWeightedMean", func(t *testing.T) {
		scores := full(map[string]float64{
			domain.PatternAmountAnomaly:  0.8,
			domain.PatternCardTesting:    0.7,
			domain.PatternVelocity:       0.9,
			domain.PatternDeclineAnomaly: 0.9,
			domain.PatternCrossMerchant:  0.8,
		})
		severity, rung := ClassifyWithRung(scores)
		if severity != domain.SeverityCritical {
			t.Errorf("expected CRITICAL, got %s (rung %s)", severity, rung)
		}
		if rung != "critical_weighted_mean" {
			t.Errorf("expected critical_weighted_mean rung, got %s", rung)
		}
	})

	t.Run("NetworkStrongPairBeatsLowMean", func(t *testing.T) {
		// Two strong network patterns promote to HIGH even though the
		// weighted mean alone would not.
		scores := full(map[string]float64{
			domain.PatternVelocity:       0.8,
			domain.PatternDeclineAnomaly: 0.75,
		})
		if wm := WeightedMean(scores); wm >= 0.5 {
			t.Fatalf("test premise broken: weighted mean %.2f should be below 0.5", wm)
		}
		severity, rung := ClassifyWithRung(scores)
		if severity != domain.SeverityHigh {
			t.Errorf("expected HIGH for two strong network patterns, got %s", severity)
		}
		if rung != "high_network_strong_pair" {
			t.Errorf("expected high_network_strong_pair rung, got %s", rung)
		}
	})

	t.Run("PeakWithNetworkSupport", func(t *testing.T) {
		// One 0.9+ peak plus a medium network pattern.
		scores := full(map[string]float64{
			domain.PatternTimeAnomaly: 0.95,
			domain.PatternVelocity:    0.5,
		})
		severity, rung := ClassifyWithRung(scores)
		if severity != domain.SeverityHigh {
			t.Errorf("expected HIGH, got %s (rung %s)", severity, rung)
		}
		if rung != "high_peak_with_network_support" {
			t.Errorf("expected high_peak_with_network_support rung, got %s", rung)
		}
	})

	t.Run("HighWeightedMean", func(t *testing.T) {
		scores := full(map[string]float64{
			domain.PatternAmountAnomaly:  0.6,
			domain.PatternCardTesting:    0.6,
			domain.PatternTimeAnomaly:    0.6,
			domain.PatternVelocity:       0.6,
			domain.PatternDeclineAnomaly: 0.6,
			domain.PatternCrossMerchant:  0.6,
		})
		// Mean is exactly 0.6; no pattern clears 0.7 so no strong pair.
		severity, _ := ClassifyWithRung(scores)
		if severity != domain.SeverityHigh {
			t.Errorf("expected HIGH, got %s", severity)
		}
	})

	t.Run("MediumWeightedMean", func(t *testing.T) {
		scores := full(map[string]float64{
			domain.PatternAmountAnomaly:  0.4,
			domain.PatternCardTesting:    0.4,
			domain.PatternTimeAnomaly:    0.4,
			domain.PatternVelocity:       0.4,
			domain.PatternDeclineAnomaly: 0.4,
			domain.PatternCrossMerchant:  0.4,
		})
		severity, rung := ClassifyWithRung(scores)
		if severity != domain.SeverityMedium {
			t.Errorf("expected MEDIUM, got %s (rung %s)", severity, rung)
		}
	})

	t.Run("BroadSpreadOfMediumScores", func(t *testing.T) {
		// Three patterns at 0.55 with only one from the network set; the
		// weighted mean stays below 0.3 but the spread still lands MEDIUM.
		scores := full(map[string]float64{
			domain.PatternAmountAnomaly: 0.55,
			domain.PatternTimeAnomaly:   0.55,
			domain.PatternCardTesting:   0.55,
		})
		severity, rung := ClassifyWithRung(scores)
		if severity != domain.SeverityMedium {
			t.Errorf("expected MEDIUM, got %s (rung %s)", severity, rung)
		}
		if rung != "medium_broad_spread" {
			t.Errorf("expected medium_broad_spread rung, got %s", rung)
		}
	})

	t.Run("QuietTransactionIsLow", func(t *testing.T) {
		scores := full(map[string]float64{domain.PatternAmountAnomaly: 0.1})
		severity, rung := ClassifyWithRung(scores)
		if severity != domain.SeverityLow {
			t.Errorf("expected LOW, got %s", severity)
		}
		if rung != "low_default" {
			t.Errorf("expected low_default rung, got %s", rung)
		}
	})

	t.Run("OrderIndependent", func(t *testing.T) {
		scores := full(map[string]float64{
			domain.PatternVelocity:       0.8,
			domain.PatternDeclineAnomaly: 0.75,
			domain.PatternAmountAnomaly:  0.3,
		})
		want := Classify(scores)

		reversed := make([]domain.PatternScore, len(scores))
		for i, p := range scores {
			reversed[len(scores)-1-i] = p
		}
		if got := Classify(reversed); got != want {
			t.Errorf("classification depends on score order: %s vs %s", want, got)
		}
	})
}

func TestAttribute(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if attrs := Attribute(nil); attrs != nil {
			t.Errorf("expected nil for empty scores, got %v", attrs)
		}
	})

	t.Run("ContributionsAndPercents", func(t *testing.T) {
		scores := full(map[string]float64{
			domain.PatternAmountAnomaly: 0.8, // 0.28
			domain.PatternVelocity:      0.5, // 0.20
		})
		attrs := Attribute(scores)
		if len(attrs) != 6 {
			t.Fatalf("expected 6 attributions, got %d", len(attrs))
		}

		byName := map[string]domain.FeatureAttribution{}
		var percentSum float64
		for _, a := range attrs {
			byName[a.Pattern] = a
			percentSum += a.Percent
		}

		amount := byName[domain.PatternAmountAnomaly]
		if math.Abs(amount.Contribution-0.28) > 1e-9 {
			t.Errorf("expected amount contribution 0.28, got %.4f", amount.Contribution)
		}
		if !amount.Top {
			t.Error("expected the largest contributor to be flagged top")
		}
		if byName[domain.PatternVelocity].Top {
			t.Error("expected only the maximal contributor flagged top")
		}
		if math.Abs(percentSum-100) > 1e-6 {
			t.Errorf("expected percents to sum to 100, got %.4f", percentSum)
		}
	})

	t.Run("ZeroScoresGetNoPercent", func(t *testing.T) {
		attrs := Attribute(full(map[string]float64{domain.PatternVelocity: 0.5}))
		for _, a := range attrs {
			if a.Pattern != domain.PatternVelocity && a.Percent != 0 {
				t.Errorf("expected 0%% for zero-score pattern %s, got %.2f", a.Pattern, a.Percent)
			}
		}
	})
}

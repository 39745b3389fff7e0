package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// fixedEngine pins the clock so freshness buckets are deterministic.
func fixedEngine(now time.Time) *Engine {
	e := NewEngine()
	e.now = func() time.Time { return now }
	return e
}

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func context(amount float64, merchantID, cardID string, ts time.Time) *domain.TransactionContext {
	rec := domain.Record{
		"transaction_id": "tx-current",
		"amount":         amount,
		"merchant_id":    merchantID,
		"card_id":        cardID,
	}
	if !ts.IsZero() {
		rec["transaction_timestamp"] = ts.Format(time.RFC3339)
	}
	return domain.NewTransactionContext("tenant-001", rec)
}

func TestFreshnessWeight(t *testing.T) {
	e := fixedEngine(now)

	cases := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"UnderOneHour", 30 * time.Minute, 1.0},
		{"UnderSixHours", 3 * time.Hour, 0.9},
		{"UnderOneDay", 12 * time.Hour, 0.7},
		{"UnderOneWeek", 3 * 24 * time.Hour, 0.5},
		{"OverOneWeek", 30 * 24 * time.Hour, 0.3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := e.FreshnessWeight(now.Add(-c.age)); got != c.want {
				t.Errorf("expected freshness %.1f at age %v, got %.1f", c.want, c.age, got)
			}
		})
	}

	t.Run("ZeroTimestamp", func(t *testing.T) {
		if got := e.FreshnessWeight(time.Time{}); got != 0.5 {
			t.Errorf("expected 0.5 for an unknown timestamp, got %.1f", got)
		}
	})

	t.Run("MonotonicallyNonIncreasing", func(t *testing.T) {
		ages := []time.Duration{0, 2 * time.Hour, 10 * time.Hour, 48 * time.Hour, 400 * time.Hour}
		prev := 1.1
		for _, age := range ages {
			w := e.FreshnessWeight(now.Add(-age))
			if w > prev {
				t.Fatalf("freshness increased with age: %.1f after %.1f", w, prev)
			}
			prev = w
		}
	})
}

func TestRiskMultiplier(t *testing.T) {
	t.Run("Outcomes", func(t *testing.T) {
		if got := RiskMultiplier("approved", nil); got != 0.65 {
			t.Errorf("expected 0.65 for approved, got %.2f", got)
		}
		if got := RiskMultiplier("declined", nil); got != 1.0 {
			t.Errorf("expected 1.0 for declined, got %.2f", got)
		}
		if got := RiskMultiplier("pending", nil); got != 0.85 {
			t.Errorf("expected 0.85 for other outcomes, got %.2f", got)
		}
	})

	t.Run("CounterEvidenceDiscount", func(t *testing.T) {
		ce := []domain.CounterEvidence{{Type: "3ds_success", Strength: 0.8}}
		// declined * (1 - 0.8*0.8) = 0.36
		got := RiskMultiplier("declined", ce)
		if math.Abs(got-0.36) > 1e-9 {
			t.Errorf("expected 0.36, got %.4f", got)
		}
	})

	t.Run("DiscountFloor", func(t *testing.T) {
		// Overwhelming counter-evidence still leaves 25% of the base.
		ce := []domain.CounterEvidence{
			{Type: "a", Strength: 1.0},
			{Type: "b", Strength: 1.0},
		}
		got := RiskMultiplier("declined", ce)
		if math.Abs(got-0.25) > 1e-9 {
			t.Errorf("expected floor 0.25, got %.4f", got)
		}
	})
}

func TestExtractCounterEvidence(t *testing.T) {
	cand := domain.Record{
		"three_ds_success": true,
		"avs_match":        true,
		"cvv_match":        false,
	}
	ce := ExtractCounterEvidence(cand)
	if len(ce) != 2 {
		t.Fatalf("expected 2 counter-evidence items, got %d", len(ce))
	}
	types := map[string]float64{}
	for _, c := range ce {
		types[c.Type] = c.Strength
	}
	if types["3ds_success"] != 0.8 {
		t.Errorf("expected 3ds strength 0.8, got %.1f", types["3ds_success"])
	}
	if types["avs_match"] != 0.5 {
		t.Errorf("expected avs strength 0.5, got %.1f", types["avs_match"])
	}
}

func TestScore(t *testing.T) {
	e := fixedEngine(now)

	t.Run("NoCandidates", func(t *testing.T) {
		result := e.Score(context(100, "m", "c", now), nil)
		if result.OverallScore != 0 {
			t.Errorf("expected overall score 0 with no candidates, got %.2f", result.OverallScore)
		}
		if len(result.Matches) != 0 {
			t.Errorf("expected no matches, got %d", len(result.Matches))
		}
	})

	t.Run("PrecomputedScore", func(t *testing.T) {
		tc := context(100, "m", "c", now)
		result := e.Score(tc, []domain.Record{
			{"transaction_id": "cand-1", "similarity_score": 0.9, "status": "declined"},
		})
		if len(result.Matches) != 1 {
			t.Fatalf("expected 1 match, got %d", len(result.Matches))
		}
		m := result.Matches[0]
		if m.MatchType != domain.MatchTypePrecomputed {
			t.Errorf("expected precomputed match type, got %s", m.MatchType)
		}
		// 0.9 * freshness(1.0) * declined(1.0)
		if math.Abs(m.Score-0.9) > 1e-9 {
			t.Errorf("expected score 0.9, got %.4f", m.Score)
		}
	})

	t.Run("AttributeHeuristic", func(t *testing.T) {
		tc := context(100, "merchant-a", "card-a", now)
		result := e.Score(tc, []domain.Record{
			{
				"transaction_id": "cand-1",
				"amount":         95.0,
				"merchant_id":    "merchant-a",
				"card_id":        "card-a",
				"status":         "declined",
			},
		})
		m := result.Matches[0]
		if m.MatchType != domain.MatchTypeAttribute {
			t.Errorf("expected attribute match type, got %s", m.MatchType)
		}
		// amount ratio 0.95 → 0.38, same merchant +0.3, same card +0.3
		want := 0.4*0.95 + 0.3 + 0.3
		if math.Abs(m.Score-want) > 1e-9 {
			t.Errorf("expected score %.4f, got %.4f", want, m.Score)
		}
	})

	t.Run("ApprovedScoresBelowDeclined", func(t *testing.T) {
		tc := context(100, "m", "c", now)
		result := e.Score(tc, []domain.Record{
			{"transaction_id": "cand-approved", "similarity_score": 0.9, "status": "approved"},
			{"transaction_id": "cand-declined", "similarity_score": 0.9, "status": "declined"},
		})

		var approved, declined float64
		for _, m := range result.Matches {
			switch m.MatchID {
			case "cand-approved":
				approved = m.Score
			case "cand-declined":
				declined = m.Score
			}
		}
		if approved >= declined {
			t.Errorf("expected approved (%.2f) below declined (%.2f)", approved, declined)
		}
	})

	t.Run("TopFiveKept", func(t *testing.T) {
		tc := context(100, "m", "c", now)
		var candidates []domain.Record
		for i := 0; i < 8; i++ {
			candidates = append(candidates, domain.Record{
				"transaction_id":   "cand-" + string(rune('a'+i)),
				"similarity_score": 0.1 * float64(i+1),
				"status":           "declined",
			})
		}
		result := e.Score(tc, candidates)
		if len(result.Matches) != 5 {
			t.Fatalf("expected 5 matches kept, got %d", len(result.Matches))
		}
		// Sorted descending, so the weakest three are dropped.
		if result.Matches[0].MatchID != "cand-h" {
			t.Errorf("expected strongest candidate first, got %s", result.Matches[0].MatchID)
		}
		for i := 1; i < len(result.Matches); i++ {
			if result.Matches[i].Score > result.Matches[i-1].Score {
				t.Fatal("expected matches sorted by score descending")
			}
		}
	})

	t.Run("OverallScoreIsMean", func(t *testing.T) {
		tc := context(100, "m", "c", now)
		result := e.Score(tc, []domain.Record{
			{"transaction_id": "a", "similarity_score": 0.8, "status": "declined"},
			{"transaction_id": "b", "similarity_score": 0.4, "status": "declined"},
		})
		if math.Abs(result.OverallScore-0.6) > 1e-9 {
			t.Errorf("expected overall 0.6, got %.4f", result.OverallScore)
		}
	})

	t.Run("CounterEvidenceAggregated", func(t *testing.T) {
		tc := context(100, "m", "c", now)
		result := e.Score(tc, []domain.Record{
			{"transaction_id": "a", "similarity_score": 0.9, "status": "declined", "three_ds_success": true},
			{"transaction_id": "b", "similarity_score": 0.8, "status": "declined", "three_ds_success": true, "avs_match": true},
		})
		if len(result.CounterEvidence) != 2 {
			t.Fatalf("expected 2 unique counter-evidence types, got %d", len(result.CounterEvidence))
		}
	})

	t.Run("StaleTransactionDiscounted", func(t *testing.T) {
		fresh := e.Score(context(100, "m", "c", now), []domain.Record{
			{"transaction_id": "a", "similarity_score": 0.9, "status": "declined"},
		})
		stale := e.Score(context(100, "m", "c", now.Add(-30*24*time.Hour)), []domain.Record{
			{"transaction_id": "a", "similarity_score": 0.9, "status": "declined"},
		})
		if stale.OverallScore >= fresh.OverallScore {
			t.Errorf("expected stale (%.2f) below fresh (%.2f)", stale.OverallScore, fresh.OverallScore)
		}
		if math.Abs(stale.OverallScore-0.27) > 1e-9 {
			t.Errorf("expected 0.9*0.3 = 0.27 for a month-old transaction, got %.4f", stale.OverallScore)
		}
	})
}

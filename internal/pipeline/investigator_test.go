package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/reasoning"
)

var anchor = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func baseTransaction(txID string, amount float64, status string) domain.Record {
	return domain.Record{
		"transaction_id":        txID,
		"card_id":               "card-001",
		"merchant_id":           "merchant-001",
		"amount":                amount,
		"currency":              "USD",
		"status":                status,
		"transaction_timestamp": anchor.Format(time.RFC3339),
	}
}

func burstHistory(n int) []domain.Record {
	var history []domain.Record
	for i := 0; i < n; i++ {
		history = append(history, domain.Record{
			"transaction_id":        "tx-hist-" + string(rune('a'+i)),
			"card_id":               "card-001",
			"merchant_id":           "merchant-" + string(rune('a'+i%6)),
			"amount":                5.0,
			"currency":              "USD",
			"status":                "declined",
			"decline_reason":        "do_not_honor",
			"transaction_timestamp": anchor.Add(-time.Duration(i+1) * time.Minute).Format(time.RFC3339),
		})
	}
	return history
}

// scriptedProvider returns a fixed completion for every call.
type scriptedProvider struct {
	content string
}

func (p *scriptedProvider) Complete(ctx context.Context, req *reasoning.CompletionRequest) (*reasoning.Completion, error) {
	return &reasoning.Completion{Content: p.content, Model: "scripted"}, nil
}

func (p *scriptedProvider) Model() string { return "scripted" }

func TestInvestigate(t *testing.T) {
	inv := New(domain.DefaultConfig(), nil)

	t.Run("QuietTransaction", func(t *testing.T) {
		result := inv.Investigate(context.Background(), &Request{
			TenantID:    "tenant-001",
			TraceID:     "trace-001",
			Transaction: baseTransaction("tx-quiet", 42.17, "approved"),
		})
		if result.ID == "" {
			t.Error("expected an investigation id")
		}
		if result.TxID != "tx-quiet" {
			t.Errorf("expected tx id propagated, got %s", result.TxID)
		}
		if result.Severity != domain.SeverityLow {
			t.Errorf("expected LOW for a quiet transaction, got %s", result.Severity)
		}
		if result.Score >= 0.3 {
			t.Errorf("expected a low weighted score, got %.2f", result.Score)
		}
		if len(result.PatternScores) != 6 {
			t.Errorf("expected all 6 detectors scored, got %d", len(result.PatternScores))
		}
		if len(result.Recommendations) == 0 {
			t.Error("expected at least the fallback recommendation")
		}
		if result.Reasoning != nil {
			t.Error("expected no reasoning result when disabled")
		}
	})

	t.Run("Metadata", func(t *testing.T) {
		result := inv.Investigate(context.Background(), &Request{
			TenantID:    "tenant-001",
			TraceID:     "trace-002",
			Transaction: baseTransaction("tx-meta", 42.17, "approved"),
			StartTime:   time.Now().Add(-50 * time.Millisecond),
		})
		m := result.Metadata
		if m.TraceID != "trace-002" {
			t.Errorf("expected trace id carried, got %s", m.TraceID)
		}
		if m.EngineVersion != EngineVersion {
			t.Errorf("expected engine version %s, got %s", EngineVersion, m.EngineVersion)
		}
		if m.TotalMs < 50 {
			t.Errorf("expected total to include caller start time, got %dms", m.TotalMs)
		}
		if m.FeaturesMs < 0 || m.PatternsMs < 0 || m.SimilarityMs < 0 {
			t.Error("expected non-negative stage timings")
		}
	})

	t.Run("CardTestingBurstEscalates", func(t *testing.T) {
		result := inv.Investigate(context.Background(), &Request{
			TenantID:    "tenant-001",
			Transaction: baseTransaction("tx-burst", 1000.0, "declined"),
			CardHistory: burstHistory(12),
		})
		if result.Severity != domain.SeverityHigh && result.Severity != domain.SeverityCritical {
			t.Errorf("expected HIGH or CRITICAL for a card-testing burst, got %s", result.Severity)
		}
		if len(result.Signals) == 0 {
			t.Error("expected signals for a burst")
		}
		if result.Windows[1].Count != 12 {
			t.Errorf("expected 12 transactions in the 1h window, got %d", result.Windows[1].Count)
		}
	})

	t.Run("SimilarityFeedsResult", func(t *testing.T) {
		result := inv.Investigate(context.Background(), &Request{
			TenantID:    "tenant-001",
			Transaction: baseTransaction("tx-sim", 42.17, "approved"),
			Similar: []domain.Record{
				{"transaction_id": "tx-prev", "similarity_score": 0.9, "status": "declined"},
			},
		})
		if result.Similarity == nil || len(result.Similarity.Matches) != 1 {
			t.Fatalf("expected 1 similarity match, got %+v", result.Similarity)
		}
		if result.Similarity.OverallScore <= 0 {
			t.Error("expected a positive similarity score")
		}
	})
}

func TestInvestigateWithReasoning(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Reasoning.Enabled = true
	cfg.Reasoning.GuardEnabled = true
	cfg.Reasoning.MaxContentRetries = 1

	t.Run("HybridOnCleanOutput", func(t *testing.T) {
		provider := &scriptedProvider{
			content: `{"narrative": "routine purchase, no anomalies", "risk_assessment": "LOW", "confidence": 0.6}`,
		}
		inv := New(cfg, provider)
		result := inv.Investigate(context.Background(), &Request{
			TenantID:    "tenant-001",
			Transaction: baseTransaction("tx-llm", 42.17, "approved"),
		})
		if result.Reasoning == nil {
			t.Fatal("expected a reasoning result")
		}
		if result.Reasoning.ModelMode != domain.ModelModeHybrid {
			t.Errorf("expected hybrid mode, got %s (%s)", result.Reasoning.ModelMode, result.Reasoning.ErrorDetail)
		}
		if result.Reasoning.Narrative == "" {
			t.Error("expected model narrative merged")
		}
		// Deterministic outcome is never overwritten by the model.
		if result.Severity != domain.SeverityLow {
			t.Errorf("expected deterministic severity preserved, got %s", result.Severity)
		}
	})

	t.Run("DeterministicFallbackOnGarbage", func(t *testing.T) {
		provider := &scriptedProvider{content: "not json"}
		inv := New(cfg, provider)
		result := inv.Investigate(context.Background(), &Request{
			TenantID:    "tenant-001",
			Transaction: baseTransaction("tx-garbage", 42.17, "approved"),
		})
		if result.Reasoning == nil {
			t.Fatal("expected a reasoning result")
		}
		if result.Reasoning.ModelMode != domain.ModelModeDeterministic {
			t.Errorf("expected deterministic fallback, got %s", result.Reasoning.ModelMode)
		}
		if result.Reasoning.Error != domain.ReasoningErrReasoningFailed {
			t.Errorf("expected %s, got %s", domain.ReasoningErrReasoningFailed, result.Reasoning.Error)
		}
		if result.Severity == "" {
			t.Error("expected the deterministic outcome intact")
		}
	})
}

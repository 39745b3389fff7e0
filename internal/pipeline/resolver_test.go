package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/reasoning"
)

func resolverScores() []domain.PatternScore {
	return []domain.PatternScore{
		{Pattern: domain.PatternAmountAnomaly, Score: 0.8, Weight: 0.35},
		{Pattern: domain.PatternVelocity, Score: 0.9, Weight: 0.40},
	}
}

func TestResolve(t *testing.T) {
	cfg := reasoning.DefaultConsistencyConfig()

	t.Run("DisabledReasoningReturnsNil", func(t *testing.T) {
		result := Resolve(nil, nil, nil, domain.SeverityHigh, resolverScores(), 0.5, cfg)
		if result != nil {
			t.Errorf("expected nil for disabled reasoning, got %+v", result)
		}
	})

	t.Run("StageErrorBecomesDeterministicResult", func(t *testing.T) {
		stageErr := &reasoning.StageError{
			Code:   domain.ReasoningErrTimeout,
			Stage:  reasoning.StageInvoking,
			Detail: "context deadline exceeded",
		}
		result := Resolve(nil, nil, stageErr, domain.SeverityHigh, resolverScores(), 0.5, cfg)
		if result == nil {
			t.Fatal("expected a deterministic result")
		}
		if result.ModelMode != domain.ModelModeDeterministic {
			t.Errorf("expected deterministic mode, got %s", result.ModelMode)
		}
		if result.Error != domain.ReasoningErrTimeout {
			t.Errorf("expected %s, got %s", domain.ReasoningErrTimeout, result.Error)
		}
		if result.DeterministicSeverity != domain.SeverityHigh {
			t.Errorf("expected deterministic severity carried, got %s", result.DeterministicSeverity)
		}
		if result.PatternScores[domain.PatternVelocity] != 0.9 {
			t.Errorf("expected pattern score map, got %v", result.PatternScores)
		}
	})

	t.Run("PlainErrorGetsGenericCode", func(t *testing.T) {
		result := Resolve(nil, nil, errors.New("boom"), domain.SeverityLow, nil, 0, cfg)
		if result.Error != domain.ReasoningErrReasoningFailed {
			t.Errorf("expected %s, got %s", domain.ReasoningErrReasoningFailed, result.Error)
		}
		if result.ErrorDetail != "boom" {
			t.Errorf("expected detail passthrough, got %q", result.ErrorDetail)
		}
	})

	t.Run("ConsistencyFailureForcesDeterministic", func(t *testing.T) {
		// LOW against deterministic CRITICAL plus overconfidence over weak
		// evidence stacks enough penalties to fail.
		out := &domain.ReasoningOutput{
			RiskAssessment: domain.SeverityLow,
			Confidence:     0.95,
			KeyFindings:    []string{"nothing to see here honestly"},
		}
		weak := []domain.PatternScore{
			{Pattern: domain.PatternAmountAnomaly, Score: 0.2, Weight: 0.35},
		}
		result := Resolve(out, nil, nil, domain.SeverityCritical, weak, 0, cfg)
		if result.ModelMode != domain.ModelModeDeterministic {
			t.Errorf("expected deterministic mode, got %s", result.ModelMode)
		}
		if result.Error != domain.ReasoningErrConsistency {
			t.Errorf("expected %s, got %s", domain.ReasoningErrConsistency, result.Error)
		}
		if !strings.Contains(result.ErrorDetail, "score") {
			t.Errorf("expected score in detail, got %q", result.ErrorDetail)
		}
		if result.Narrative != "" {
			t.Error("expected no model narrative on a failed consistency check")
		}
	})

	t.Run("SuccessfulMergeIsHybrid", func(t *testing.T) {
		out := &domain.ReasoningOutput{
			Narrative:      "velocity burst on one card",
			RiskAssessment: domain.SeverityHigh,
			Confidence:     0.8,
			KeyFindings:    []string{"velocity score elevated"},
		}
		meta := &reasoning.Invocation{LatencyMs: 420, Model: "test-model"}
		result := Resolve(out, meta, nil, domain.SeverityHigh, resolverScores(), 0.4, cfg)
		if result.ModelMode != domain.ModelModeHybrid {
			t.Errorf("expected hybrid mode, got %s", result.ModelMode)
		}
		if result.Narrative != "velocity burst on one card" {
			t.Errorf("unexpected narrative %q", result.Narrative)
		}
		if result.Error != "" {
			t.Errorf("expected no error, got %s", result.Error)
		}
		if result.LLMModel != "test-model" || result.LLMLatencyMs != 420 {
			t.Errorf("expected invocation metadata merged, got %+v", result)
		}
		if result.SimilarityScore != 0.4 {
			t.Errorf("expected similarity score carried, got %.2f", result.SimilarityScore)
		}
	})

	t.Run("PartialParseMergesButStaysDeterministic", func(t *testing.T) {
		out := &domain.ReasoningOutput{
			Narrative:      "recovered from truncation",
			RiskAssessment: domain.SeverityHigh,
			PartialParse:   true,
		}
		result := Resolve(out, nil, nil, domain.SeverityHigh, resolverScores(), 0, cfg)
		if result.ModelMode != domain.ModelModeDeterministic {
			t.Errorf("expected deterministic mode for partial parse, got %s", result.ModelMode)
		}
		if result.Narrative != "recovered from truncation" {
			t.Error("expected recovered narrative still merged")
		}
		if result.Error != "" {
			t.Errorf("partial parse is not an error, got %s", result.Error)
		}
	})
}

func TestInsightSummary(t *testing.T) {
	t.Run("NamesStrongestPattern", func(t *testing.T) {
		got := insightSummary(domain.SeverityHigh, resolverScores())
		if !strings.Contains(got, domain.PatternVelocity) || !strings.Contains(got, "0.90") {
			t.Errorf("expected strongest pattern named, got %q", got)
		}
	})

	t.Run("NoElevatedPatterns", func(t *testing.T) {
		got := insightSummary(domain.SeverityLow, nil)
		if !strings.Contains(got, "no elevated patterns") {
			t.Errorf("unexpected summary %q", got)
		}
	})
}

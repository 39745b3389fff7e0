package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/reasoning"
)

// Resolve combines the reasoning stage outcome with deterministic evidence.
// On success it merges into a hybrid result; on any failure it returns a
// structured deterministic-mode result with an explicit error code. A nil
// return means reasoning was disabled, never that it failed silently.
func Resolve(
	out *domain.ReasoningOutput,
	meta *reasoning.Invocation,
	stageErr error,
	severity domain.Severity,
	scores []domain.PatternScore,
	similarityScore float64,
	consistencyCfg reasoning.ConsistencyConfig,
) *domain.ReasoningResult {
	base := &domain.ReasoningResult{
		ModelMode:             domain.ModelModeDeterministic,
		DeterministicSeverity: severity,
		PatternScores:         scoreMap(scores),
		SimilarityScore:       similarityScore,
		InsightSummary:        insightSummary(severity, scores),
	}

	if stageErr != nil {
		var se *reasoning.StageError
		if errors.As(stageErr, &se) {
			base.Error = se.Code
			base.ErrorDetail = se.Detail
		} else {
			base.Error = domain.ReasoningErrReasoningFailed
			base.ErrorDetail = stageErr.Error()
		}
		return base
	}

	if out == nil {
		// Reasoning disabled: no result at all, so callers can tell
		// "disabled" apart from "attempted and failed".
		return nil
	}

	consistency := reasoning.CheckConsistency(out, severity, scores, consistencyCfg)
	if !consistency.Passed {
		base.Error = domain.ReasoningErrConsistency
		base.ErrorDetail = fmt.Sprintf("score %.2f: %s",
			consistency.Score, strings.Join(consistency.Violations, "; "))
		return base
	}

	merged := *base
	merged.Narrative = out.Narrative
	merged.RiskAssessment = out.RiskAssessment
	merged.KeyFindings = out.KeyFindings
	merged.Confidence = out.Confidence
	merged.ModelMode = domain.ModelModeHybrid
	if out.PartialParse {
		// Recovered-from-truncation output is merged but not trusted as
		// a full hybrid result.
		merged.ModelMode = domain.ModelModeDeterministic
	}
	if meta != nil {
		merged.LLMLatencyMs = meta.LatencyMs
		merged.LLMModel = meta.Model
		merged.LLMUsage = meta.Usage
	}
	return &merged
}

func scoreMap(scores []domain.PatternScore) map[string]float64 {
	m := make(map[string]float64, len(scores))
	for _, p := range scores {
		m[p.Pattern] = p.Score
	}
	return m
}

// insightSummary is the one-line deterministic summary attached to every
// reasoning result.
func insightSummary(severity domain.Severity, scores []domain.PatternScore) string {
	top := ""
	topScore := 0.0
	for _, p := range scores {
		if p.Score > topScore {
			top = p.Pattern
			topScore = p.Score
		}
	}
	if top == "" {
		return fmt.Sprintf("severity %s with no elevated patterns", severity)
	}
	return fmt.Sprintf("severity %s, strongest pattern %s at %.2f", severity, top, topScore)
}

package reasoning

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/guard"
)

// Consistency penalty weights and the overconfidence cutoffs.
const (
	penaltySeverityMismatch = 0.3
	penaltyUngrounded       = 0.3
	penaltyOverconfidence   = 0.2

	overconfidenceLevel = 0.8
	weakEvidenceMean    = 0.5
)

// ConsistencyConfig tunes the consistency check.
type ConsistencyConfig struct {
	// PassThreshold is the minimum score for the check to pass.
	PassThreshold float64

	// GroundingThreshold is the minimum fraction of findings that must
	// trace back to the deterministic evidence lines.
	GroundingThreshold float64
}

// DefaultConsistencyConfig returns the standard thresholds.
func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{PassThreshold: 0.7, GroundingThreshold: 0.3}
}

// CheckConsistency scores the sanitized model output's agreement with the
// deterministic evidence. The check is deliberately terminal: a failure
// forces a deterministic-only outcome, because silently trusting an
// ungrounded model output is worse than omitting it.
func CheckConsistency(out *domain.ReasoningOutput, severity domain.Severity, scores []domain.PatternScore, cfg ConsistencyConfig) domain.ConsistencyResult {
	result := domain.ConsistencyResult{Score: 1.0}

	// Severity more than one rank apart is a disagreement, not nuance.
	gap := out.RiskAssessment.Rank() - severity.Rank()
	if gap < 0 {
		gap = -gap
	}
	if gap > 1 {
		result.Score -= penaltySeverityMismatch
		result.Violations = append(result.Violations,
			fmt.Sprintf("Severity mismatch: model %s vs deterministic %s", out.RiskAssessment, severity))
	}

	// Findings must trace back to the deterministic evidence lines.
	if len(out.KeyFindings) > 0 {
		grounded := 0
		lines := guard.PatternSummary(scores)
		for _, finding := range out.KeyFindings {
			if isGrounded(finding, lines) {
				grounded++
			}
		}
		fraction := float64(grounded) / float64(len(out.KeyFindings))
		if fraction < cfg.GroundingThreshold {
			result.Score -= penaltyUngrounded
			result.Violations = append(result.Violations,
				fmt.Sprintf("Findings not grounded in evidence: %.0f%% traceable", fraction*100))
		}
	}

	// High confidence over weak deterministic evidence.
	if out.Confidence > overconfidenceLevel && meanScore(scores) < weakEvidenceMean {
		result.Score -= penaltyOverconfidence
		result.Violations = append(result.Violations,
			fmt.Sprintf("Overconfident: confidence %.2f against mean pattern score %.2f", out.Confidence, meanScore(scores)))
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	result.Passed = result.Score >= cfg.PassThreshold
	return result
}

// isGrounded reports whether a finding shares at least two tokens with any
// single evidence line.
func isGrounded(finding string, lines []string) bool {
	tokens := tokenize(finding)
	for _, line := range lines {
		lineTokens := tokenize(line)
		overlap := 0
		for t := range tokens {
			if lineTokens[t] {
				overlap++
				if overlap >= 2 {
					return true
				}
			}
		}
	}
	return false
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '_', '-', ',', '.', ':', ';', '(', ')':
			return true
		}
		return false
	}) {
		if len(t) >= 2 {
			out[t] = true
		}
	}
	return out
}

func meanScore(scores []domain.PatternScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, p := range scores {
		sum += p.Score
	}
	return sum / float64(len(scores))
}

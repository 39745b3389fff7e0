package domain

// Reasoning error codes. A deterministic-mode result always carries one of
// these when the reasoning path was attempted and failed, so operators can
// distinguish "disabled" from "attempted and failed".
const (
	ReasoningErrPromptGuard     = "prompt_guard_failed"
	ReasoningErrPIIGuard        = "pii_guard_failed"
	ReasoningErrTimeout         = "llm_timeout"
	ReasoningErrConsistency     = "consistency_check_failed"
	ReasoningErrProviderInit    = "llm_provider_init_failed"
	ReasoningErrReasoningFailed = "llm_reasoning_failed"
)

// Model modes for the final result.
const (
	ModelModeHybrid        = "hybrid"
	ModelModeDeterministic = "deterministic"
)

// ReasoningOutput is the sanitized, validated model output.
type ReasoningOutput struct {
	Narrative      string   `json:"narrative"`
	RiskAssessment Severity `json:"riskAssessment"`
	Confidence     float64  `json:"confidence"` // clamped to [0,1]
	KeyFindings    []string `json:"keyFindings,omitempty"`
	Hypotheses     []string `json:"hypotheses,omitempty"`

	// PartialParse marks output recovered from truncated JSON.
	PartialParse bool     `json:"partialParse,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ConsistencyResult scores the model output's agreement with deterministic
// evidence. Passed == (Score >= threshold).
type ConsistencyResult struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
	Score      float64  `json:"score"` // clamped to [0,1]
}

// ReasoningResult is what the pipeline reports for the reasoning path: a
// hybrid merge of validated model output with deterministic evidence, or an
// explicit deterministic-mode outcome with an error code. It is never a
// half-populated middle ground.
type ReasoningResult struct {
	Narrative      string   `json:"narrative,omitempty"`
	RiskAssessment Severity `json:"riskAssessment,omitempty"`
	KeyFindings    []string `json:"keyFindings,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`

	ModelMode string `json:"modelMode"`

	DeterministicSeverity Severity           `json:"deterministicSeverity"`
	PatternScores         map[string]float64 `json:"patternScores"`
	SimilarityScore       float64            `json:"similarityScore"`
	InsightSummary        string             `json:"insightSummary,omitempty"`

	LLMLatencyMs int64          `json:"llmLatencyMs,omitempty"`
	LLMModel     string         `json:"llmModel,omitempty"`
	LLMUsage     map[string]any `json:"llmUsage,omitempty"`

	Error       string `json:"error,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

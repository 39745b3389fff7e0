package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/guard"
)

// Stage names for the per-investigation state machine.
type Stage string

const (
	StageDisabled      Stage = "disabled"
	StageAssembling    Stage = "assembling_payload"
	StageRedacting     Stage = "redacting"
	StageGuardChecking Stage = "guard_checking"
	StageRendering     Stage = "rendering"
	StageInvoking      Stage = "invoking"
	StageParsing       Stage = "parsing"
	StageValidating    Stage = "validating"
)

// contentRetryDelay is the fixed delay between content-empty retries.
const contentRetryDelay = time.Second

// StageError reports a reasoning-stage failure with a stable error code.
// It is a value the pipeline converts into a deterministic-mode result,
// never an exception that escapes to the caller.
type StageError struct {
	Code   string
	Stage  Stage
	Detail string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s at stage %s: %s", e.Code, e.Stage, e.Detail)
}

// Invocation carries provider metadata for the merged result.
type Invocation struct {
	LatencyMs int64
	Model     string
	Usage     map[string]any
}

// Orchestrator runs the guarded reasoning stage for one investigation.
type Orchestrator struct {
	provider Provider
	policy   *guard.RedactionPolicy
	cfg      domain.ReasoningConfig
}

// NewOrchestrator creates an orchestrator. provider may be nil when
// reasoning is disabled.
func NewOrchestrator(provider Provider, cfg domain.ReasoningConfig) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		policy:   guard.DefaultPolicy(),
		cfg:      cfg,
	}
}

// Enabled reports whether the reasoning stage will run at all.
func (o *Orchestrator) Enabled() bool {
	return o.cfg.Enabled
}

// Run executes the stage chain:
//
//	AssemblingPayload -> Redacting -> GuardChecking -> Rendering ->
//	Invoking -> Parsing -> Validating
//
// A disabled orchestrator returns (nil, nil, nil): disabled is not a
// failure. Every other exit is either a validated output or a *StageError.
func (o *Orchestrator) Run(ctx context.Context, ev guard.EvidenceInput) (*domain.ReasoningOutput, *Invocation, error) {
	if !o.cfg.Enabled {
		return nil, nil, nil
	}
	if o.provider == nil {
		return nil, nil, &StageError{
			Code:   domain.ReasoningErrProviderInit,
			Stage:  StageInvoking,
			Detail: "no provider configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout())
	defer cancel()

	// AssemblingPayload
	payload := guard.AssemblePayload(ev)

	// Redacting
	payload = o.policy.Redact(payload)

	// GuardChecking
	if o.cfg.GuardEnabled {
		if violations := guard.ValidatePayload(payload, o.policy); len(violations) > 0 {
			return nil, nil, &StageError{
				Code:   domain.ReasoningErrPromptGuard,
				Stage:  StageGuardChecking,
				Detail: strings.Join(violations, "; "),
			}
		}
		if hits := guard.ScanInjection(payload); len(hits) > 0 {
			return nil, nil, &StageError{
				Code:   domain.ReasoningErrPromptGuard,
				Stage:  StageGuardChecking,
				Detail: fmt.Sprintf("injection patterns at %s", strings.Join(hits, ", ")),
			}
		}
		if findings := guard.ScanPII(payload); len(findings) > 0 {
			kinds := make([]string, 0, len(findings))
			for _, f := range findings {
				kinds = append(kinds, f.Kind+" at "+f.Path)
			}
			return nil, nil, &StageError{
				Code:   domain.ReasoningErrPIIGuard,
				Stage:  StageGuardChecking,
				Detail: strings.Join(kinds, ", "),
			}
		}
	}

	// Rendering
	messages, err := renderPrompt(payload)
	if err != nil {
		return nil, nil, &StageError{
			Code:   domain.ReasoningErrReasoningFailed,
			Stage:  StageRendering,
			Detail: err.Error(),
		}
	}

	// Invoking
	completion, err := o.invoke(ctx, messages)
	if err != nil {
		return nil, nil, err
	}

	// Parsing
	obj, parseErr := Parse(completion.BestContent())
	if parseErr != nil {
		return nil, nil, &StageError{
			Code:   domain.ReasoningErrReasoningFailed,
			Stage:  StageParsing,
			Detail: parseErr.Error(),
		}
	}

	// Validating
	out := Sanitize(obj)

	meta := &Invocation{
		LatencyMs: completion.LatencyMs,
		Model:     completion.Model,
		Usage:     completion.Usage,
	}
	return out, meta, nil
}

// invoke runs the content-retry loop around the provider call. The HTTP
// retry loop lives inside the provider; this loop re-issues the whole call
// when the model returns no usable content. Both loops have fixed ceilings,
// and the stage deadline is checked before every attempt.
func (o *Orchestrator) invoke(ctx context.Context, messages []Message) (*Completion, error) {
	attempts := o.cfg.MaxContentRetries
	if attempts <= 0 {
		attempts = 3
	}

	req := &CompletionRequest{
		Messages:  messages,
		JSONMode:  true,
		MaxTokens: o.cfg.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, o.timeoutError(err)
		}

		completion, err := o.provider.Complete(ctx, req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, o.timeoutError(err)
			}
			lastErr = err
			slog.Warn("model invocation failed",
				"attempt", attempt,
				"error", err,
			)
		} else if completion.BestContent() != "" {
			return completion, nil
		} else {
			lastErr = fmt.Errorf("model returned empty content")
			slog.Warn("model returned empty content", "attempt", attempt)
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, o.timeoutError(ctx.Err())
			case <-time.After(contentRetryDelay):
			}
		}
	}

	return nil, &StageError{
		Code:   domain.ReasoningErrReasoningFailed,
		Stage:  StageInvoking,
		Detail: fmt.Sprintf("all %d attempts failed: %v", attempts, lastErr),
	}
}

func (o *Orchestrator) timeoutError(err error) *StageError {
	return &StageError{
		Code:   domain.ReasoningErrTimeout,
		Stage:  StageInvoking,
		Detail: err.Error(),
	}
}

// stageTimeout is the whole-stage budget, capped below the raw provider
// timeout so the stage always reports its own timeout first.
func (o *Orchestrator) stageTimeout() time.Duration {
	stage := o.cfg.StageTimeout
	if stage <= 0 {
		stage = 20 * time.Second
	}
	provider := o.cfg.ProviderTimeout
	if provider <= 0 {
		provider = 30 * time.Second
	}
	if stage >= provider {
		stage = provider - time.Second
	}
	// A provider timeout of a second or less would leave no budget at all;
	// keep a positive floor so short configs degrade instead of failing
	// every run.
	if stage < time.Second {
		stage = time.Second
	}
	return stage
}

// systemPrompt frames the model's task. The payload is the only
// investigation data it sees.
const systemPrompt = `You are a payment fraud analyst. You receive redacted, deterministic evidence about one transaction. Respond with a single JSON object with fields: narrative (string), risk_assessment (LOW|MEDIUM|HIGH|CRITICAL), confidence (0..1), key_findings (array of strings), hypotheses (array of strings). Base every finding on the evidence provided.`

// renderPrompt builds the chat messages around the guarded payload.
func renderPrompt(payload map[string]any) ([]Message, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode evidence payload: %w", err)
	}
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Evidence:\n" + string(encoded)},
	}, nil
}

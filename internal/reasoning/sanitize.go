package reasoning

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/guard"
)

// Output sanitization caps.
const (
	maxNarrativeLen  = 2000
	maxFindings      = 20
	maxHypotheses    = 10
	maxItemLen       = 500
	defaultRiskLevel = domain.SeverityMedium
)

// sensitiveKeys are stripped from parsed model output before anything else
// is read from it.
var sensitiveKeys = []string{"system", "instruction", "override", "password", "secret", "token"}

// Sanitize turns a parsed model object into a validated ReasoningOutput.
// Injection-matching content is replaced with a marker and recorded as a
// warning, never passed through silently.
func Sanitize(obj map[string]any) *domain.ReasoningOutput {
	out := &domain.ReasoningOutput{RiskAssessment: defaultRiskLevel}

	obj = stripSensitiveKeys(obj)

	if partial, ok := obj[PartialParseKey].(bool); ok && partial {
		out.PartialParse = true
	}

	if narrative, ok := obj["narrative"].(string); ok {
		out.Narrative = sanitizeText(narrative, maxNarrativeLen, "narrative", &out.Warnings)
	}

	if risk := stringField(obj, "risk_assessment", "risk_level"); risk != "" {
		out.RiskAssessment = domain.NormalizeSeverity(strings.ToUpper(strings.TrimSpace(risk)))
	}

	if conf, ok := floatField(obj, "confidence"); ok {
		out.Confidence = clamp01(conf)
	}

	out.KeyFindings = sanitizeList(obj["key_findings"], maxFindings, "key_findings", &out.Warnings)
	out.Hypotheses = sanitizeList(obj["hypotheses"], maxHypotheses, "hypotheses", &out.Warnings)

	return out
}

// stripSensitiveKeys removes keys that should never appear in model output,
// case-insensitively, at every level.
func stripSensitiveKeys(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if isSensitiveKey(k) {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = stripSensitiveKeys(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if lower == s {
			return true
		}
	}
	return false
}

// sanitizeText truncates and re-scans a text field for injection patterns.
func sanitizeText(s string, maxLen int, field string, warnings *[]string) string {
	if len(s) > maxLen {
		// Back off to a rune boundary so truncation never splits a
		// multi-byte character.
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
		*warnings = append(*warnings, fmt.Sprintf("%s truncated to %d chars", field, maxLen))
	}
	if pattern, ok := guard.MatchInjection(s); ok {
		*warnings = append(*warnings, fmt.Sprintf("injection pattern in %s: %s", field, pattern))
		return guard.SanitizedMarker
	}
	return s
}

// sanitizeList caps a string list and sanitizes each item.
func sanitizeList(v any, maxItems int, field string, warnings *[]string) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	if len(items) > maxItems {
		items = items[:maxItems]
		*warnings = append(*warnings, fmt.Sprintf("%s capped at %d items", field, maxItems))
	}

	var out []string
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, sanitizeText(s, maxItemLen, fmt.Sprintf("%s[%d]", field, i), warnings))
	}
	return out
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func floatField(obj map[string]any, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
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

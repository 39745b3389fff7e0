package guard

import (
	"fmt"
)

// Structural limits on the outbound payload.
const (
	MaxPayloadDepth = 10
	MaxStringLength = 50000
)

// ValidatePayload recursively checks a payload against the policy's
// block-list and the structural limits. Violations are advisory in the
// sense that nothing is repaired here: any violation fails the reasoning
// stage up the stack, because a payload that trips these checks means the
// assembly upstream cannot be trusted.
func ValidatePayload(payload map[string]any, policy *RedactionPolicy) []string {
	var violations []string
	validateMap("", payload, policy, 1, &violations)
	return violations
}

func validateMap(path string, m map[string]any, policy *RedactionPolicy, depth int, violations *[]string) {
	if depth > MaxPayloadDepth {
		*violations = append(*violations, fmt.Sprintf("payload exceeds max depth %d at %q", MaxPayloadDepth, path))
		return
	}
	for k, v := range m {
		p := joinPath(path, k)
		if policy != nil && policy.Blocked(k) {
			*violations = append(*violations, fmt.Sprintf("blocked field %q present", p))
		}
		validateValue(p, v, policy, depth+1, violations)
	}
}

func validateValue(path string, v any, policy *RedactionPolicy, depth int, violations *[]string) {
	switch val := v.(type) {
	case string:
		if len(val) > MaxStringLength {
			*violations = append(*violations, fmt.Sprintf("string at %q exceeds %d chars", path, MaxStringLength))
		}
	case map[string]any:
		validateMap(path, val, policy, depth, violations)
	case []any:
		if depth > MaxPayloadDepth {
			*violations = append(*violations, fmt.Sprintf("payload exceeds max depth %d at %q", MaxPayloadDepth, path))
			return
		}
		for i, item := range val {
			validateValue(fmt.Sprintf("%s[%d]", path, i), item, policy, depth+1, violations)
		}
	case []string:
		for i, item := range val {
			if len(item) > MaxStringLength {
				*violations = append(*violations, fmt.Sprintf("string at %s[%d] exceeds %d chars", path, i, MaxStringLength))
			}
		}
	}
}

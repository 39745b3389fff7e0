// Package guard builds the bounded evidence payload that crosses the trust
// boundary to the model, and enforces the redaction, PII, and
// prompt-injection guardrails around it.
package guard

import (
	"strings"
)

// DefaultAllowFields is the strict allow-list of evidence fields that may
// reach the model.
var DefaultAllowFields = []string{
	"transaction_id",
	"amount",
	"currency",
	"merchant_id",
	"card_id",
	"transaction_timestamp",
	"status",
	"decline_reason",
	"severity",
	"weighted_score",
	"pattern_summary",
	"similarity_summary",
	"similarity_score",
	"counter_evidence",
	"indicators",
	"signals",
	"window_summary",
	"rule_matches",
}

// DefaultBlockFields is the block-list. Block wins over allow, so a blocked
// field is dropped even when someone allow-lists it.
var DefaultBlockFields = []string{
	"pan",
	"card_number",
	"cardholder_name",
	"customer_name",
	"address",
	"billing_address",
	"shipping_address",
	"phone",
	"phone_number",
	"email",
	"email_address",
	"ip",
	"ip_address",
	"ssn",
	"cvv",
	"password",
	"secret",
	"token",
	"api_key",
}

// RedactionPolicy is an allow-set and block-set of field names, matched
// case-insensitively. Unknown fields are dropped: allow-listing is strict.
type RedactionPolicy struct {
	allow map[string]struct{}
	block map[string]struct{}
}

// NewRedactionPolicy builds a policy from explicit lists.
func NewRedactionPolicy(allow, block []string) *RedactionPolicy {
	p := &RedactionPolicy{
		allow: make(map[string]struct{}, len(allow)),
		block: make(map[string]struct{}, len(block)),
	}
	for _, f := range allow {
		p.allow[strings.ToLower(f)] = struct{}{}
	}
	for _, f := range block {
		p.block[strings.ToLower(f)] = struct{}{}
	}
	return p
}

// DefaultPolicy returns the built-in allow/block policy.
func DefaultPolicy() *RedactionPolicy {
	return NewRedactionPolicy(DefaultAllowFields, DefaultBlockFields)
}

// Blocked reports whether a field name is block-listed.
func (p *RedactionPolicy) Blocked(field string) bool {
	_, ok := p.block[strings.ToLower(field)]
	return ok
}

// Allowed reports whether a field may cross to the model. Block wins.
func (p *RedactionPolicy) Allowed(field string) bool {
	if p.Blocked(field) {
		return false
	}
	_, ok := p.allow[strings.ToLower(field)]
	return ok
}

// Redact applies the policy to a payload: blocked and unknown top-level
// fields are dropped, and allowed nested maps and lists are redacted
// recursively against the block-list. Redaction is idempotent.
func (p *RedactionPolicy) Redact(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if !p.Allowed(k) {
			continue
		}
		out[k] = p.redactValue(v)
	}
	return out
}

// redactValue strips block-listed keys from nested structures. Nested maps
// are not re-checked against the allow-list; only the top level is strict.
func (p *RedactionPolicy) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			if p.Blocked(k) {
				continue
			}
			out[k] = p.redactValue(nested)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, p.redactValue(item))
		}
		return out
	case []string:
		return val
	default:
		return v
	}
}

package guard

import (
	"fmt"
	"regexp"
)

// PII patterns, compiled once. These run over every string leaf of the
// outbound payload as defense-in-depth behind the redaction policy.
var (
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	rePhone = regexp.MustCompile(`\+?\d{1,3}[-. (]?\d{3}[-. )]?\d{3}[-. ]?\d{4}\b`)
	// 13-19 consecutive digits, optionally separated, card-like
	reCardNumber = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	reSSN        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	reIPv4       = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\.){3}(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])\b`)
	reIPv6       = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`)
)

// piiScanners is the ordered scan table.
var piiScanners = []struct {
	Kind    string
	Pattern *regexp.Regexp
}{
	{"email", reEmail},
	{"card_number", reCardNumber},
	{"ssn", reSSN},
	{"phone", rePhone},
	{"ipv4", reIPv4},
	{"ipv6", reIPv6},
}

// PIIFinding is one PII hit inside the payload.
type PIIFinding struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// ScanPII walks every string leaf of the payload and reports PII-looking
// content. Findings are reported, never repaired: a hit means the upstream
// assembly is untrustworthy and the reasoning stage must not proceed.
func ScanPII(payload map[string]any) []PIIFinding {
	var findings []PIIFinding
	scanValue("", payload, &findings)
	return findings
}

func scanValue(path string, v any, findings *[]PIIFinding) {
	switch val := v.(type) {
	case string:
		scanString(path, val, findings)
	case map[string]any:
		for k, nested := range val {
			scanValue(joinPath(path, k), nested, findings)
		}
	case []any:
		for i, item := range val {
			scanValue(fmt.Sprintf("%s[%d]", path, i), item, findings)
		}
	case []string:
		for i, item := range val {
			scanString(fmt.Sprintf("%s[%d]", path, i), item, findings)
		}
	}
}

func scanString(path, s string, findings *[]PIIFinding) {
	for _, scanner := range piiScanners {
		if scanner.Pattern.MatchString(s) {
			*findings = append(*findings, PIIFinding{Path: path, Kind: scanner.Kind})
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

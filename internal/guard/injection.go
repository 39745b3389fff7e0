package guard

import (
	"regexp"
)

// SanitizedMarker replaces content that matched an injection pattern.
// Replacement, not silent pass-through: the reader must see that something
// was removed.
const SanitizedMarker = "[content removed: injection pattern]"

// injectionPatterns is the fixed list of prompt-injection markers. Matched
// content is replaced, and the hit is surfaced as a warning.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|context)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s`),
	regexp.MustCompile(`(?i)act\s+as\s+(a|an|the)?\s*(system|admin|root|developer)`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)system\s*prompt\s*:`),
	regexp.MustCompile("(?is)```\\s*system"),
	regexp.MustCompile(`(?i)<\s*/?\s*system\s*>`),
	regexp.MustCompile(`(?i)\bDAN\s+mode\b`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)do\s+anything\s+now`),
	regexp.MustCompile(`(?i)reveal\s+(your\s+)?(system\s+prompt|instructions)`),
}

// MatchInjection reports the first injection pattern that matches s.
func MatchInjection(s string) (string, bool) {
	for _, p := range injectionPatterns {
		if p.MatchString(s) {
			return p.String(), true
		}
	}
	return "", false
}

// ScanInjection walks the payload's string leaves and reports paths that
// match an injection pattern.
func ScanInjection(payload map[string]any) []string {
	var hits []string
	var walk func(path string, v any)
	walk = func(path string, v any) {
		switch val := v.(type) {
		case string:
			if _, ok := MatchInjection(val); ok {
				hits = append(hits, path)
			}
		case map[string]any:
			for k, nested := range val {
				walk(joinPath(path, k), nested)
			}
		case []any:
			for _, item := range val {
				walk(path, item)
			}
		case []string:
			for _, item := range val {
				walk(path, item)
			}
		}
	}
	walk("", payload)
	return hits
}

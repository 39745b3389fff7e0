package reasoning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PartialParseKey marks an object recovered by the regex fallback from
// truncated JSON.
const PartialParseKey = "_partial_parse"

var (
	reJSONFence    = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	reGenericFence = regexp.MustCompile("(?s)```\\s*(.*?)```")

	reNarrative  = regexp.MustCompile(`"narrative"\s*:\s*"((?:[^"\\]|\\.)*)`)
	reRiskLevel  = regexp.MustCompile(`"(?:risk_level|risk_assessment)"\s*:\s*"([A-Za-z]+)"`)
	reConfidence = regexp.MustCompile(`"confidence"\s*:\s*([0-9.]+)`)
	reFindings   = regexp.MustCompile(`(?s)"key_findings"\s*:\s*\[(.*?)(?:\]|$)`)
	reHypotheses = regexp.MustCompile(`(?s)"hypotheses"\s*:\s*\[(.*?)(?:\]|$)`)
	reQuoted     = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// Parse recovers a JSON object from raw model text. Strategies are tried in
// order: direct parse, ```json fence, generic fence, brace-balanced
// substring extraction, and finally regex-based partial recovery for
// truncated JSON. If nothing yields a usable object, Parse fails loudly so
// the caller can decide whether to retry or fall back deterministically.
func Parse(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response text")
	}

	// Direct parse.
	if obj, ok := unmarshalObject(trimmed); ok {
		return obj, nil
	}

	// Fenced code blocks, json-tagged first.
	for _, re := range []*regexp.Regexp{reJSONFence, reGenericFence} {
		if m := re.FindStringSubmatch(trimmed); m != nil {
			if obj, ok := unmarshalObject(strings.TrimSpace(m[1])); ok {
				return obj, nil
			}
		}
	}

	// Brace-balanced substring, string/escape aware.
	if candidate, ok := extractBalanced(trimmed); ok {
		if obj, ok := unmarshalObject(candidate); ok {
			return obj, nil
		}
	}

	// Regex recovery of the known fields from truncated JSON.
	if recovered, ok := recoverPartial(trimmed); ok {
		return recovered, nil
	}

	return nil, fmt.Errorf("no parse strategy yielded a usable object")
}

// unmarshalObject decodes candidate into a JSON object. The JSON literal
// null decodes without error but leaves the map nil; that is a miss, not an
// object, and must fall through to the next strategy.
func unmarshalObject(candidate string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// extractBalanced finds the first balanced {...} region, tracking string
// and escape state so braces inside string literals do not confuse
// matching.
func extractBalanced(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// recoverPartial pulls the known fields out of truncated JSON with regular
// expressions. The result carries the partial-parse marker.
func recoverPartial(s string) (map[string]any, bool) {
	out := map[string]any{}

	if m := reNarrative.FindStringSubmatch(s); m != nil {
		out["narrative"] = unescapeJSON(m[1])
	}
	if m := reRiskLevel.FindStringSubmatch(s); m != nil {
		out["risk_level"] = m[1]
	}
	if m := reConfidence.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			out["confidence"] = f
		}
	}
	if m := reFindings.FindStringSubmatch(s); m != nil {
		if items := quotedItems(m[1]); len(items) > 0 {
			out["key_findings"] = items
		}
	}
	if m := reHypotheses.FindStringSubmatch(s); m != nil {
		if items := quotedItems(m[1]); len(items) > 0 {
			out["hypotheses"] = items
		}
	}

	if len(out) == 0 {
		return nil, false
	}
	out[PartialParseKey] = true
	return out, true
}

func quotedItems(s string) []any {
	var items []any
	for _, m := range reQuoted.FindAllStringSubmatch(s, -1) {
		items = append(items, unescapeJSON(m[1]))
	}
	return items
}

func unescapeJSON(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

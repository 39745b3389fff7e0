package reasoning

import (
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("DirectJSON", func(t *testing.T) {
		obj, err := Parse(`{"narrative": "looks fine", "confidence": 0.4}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["narrative"] != "looks fine" {
			t.Errorf("expected narrative, got %v", obj["narrative"])
		}
	})

	t.Run("JSONFence", func(t *testing.T) {
		raw := "Here is my analysis:\n```json\n{\"risk_level\": \"HIGH\"}\n```\nDone."
		obj, err := Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["risk_level"] != "HIGH" {
			t.Errorf("expected risk_level HIGH, got %v", obj["risk_level"])
		}
	})

	t.Run("GenericFence", func(t *testing.T) {
		raw := "```\n{\"confidence\": 0.9}\n```"
		obj, err := Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["confidence"] != 0.9 {
			t.Errorf("expected confidence 0.9, got %v", obj["confidence"])
		}
	})

	t.Run("BalancedBraceExtraction", func(t *testing.T) {
		raw := `The assessment follows. {"narrative": "brace } inside string", "confidence": 0.5} Trailing prose.`
		obj, err := Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["narrative"] != "brace } inside string" {
			t.Errorf("expected brace-aware extraction, got %v", obj["narrative"])
		}
	})

	t.Run("PartialRecoveryFromTruncation", func(t *testing.T) {
		// Truncated mid-way through key_findings; no balanced object exists.
		raw := `{"narrative": "card testing burst", "risk_level": "HIGH", "confidence": 0.85, "key_findings": ["12 declines in 1h", "micro amounts", "cross-merch`
		obj, err := Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj[PartialParseKey] != true {
			t.Error("expected partial parse marker")
		}
		if obj["narrative"] != "card testing burst" {
			t.Errorf("expected narrative recovered, got %v", obj["narrative"])
		}
		if obj["risk_level"] != "HIGH" {
			t.Errorf("expected risk_level recovered, got %v", obj["risk_level"])
		}
		if obj["confidence"] != 0.85 {
			t.Errorf("expected confidence recovered, got %v", obj["confidence"])
		}
		findings, ok := obj["key_findings"].([]any)
		if !ok || len(findings) != 2 {
			t.Fatalf("expected 2 findings recovered, got %v", obj["key_findings"])
		}
		if findings[0] != "12 declines in 1h" {
			t.Errorf("unexpected first finding %v", findings[0])
		}
	})

	t.Run("EscapedQuotesInRecoveredNarrative", func(t *testing.T) {
		raw := `{"narrative": "the \"test\" pattern", "risk_level": "LOW"`
		obj, err := Parse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj["narrative"] != `the "test" pattern` {
			t.Errorf("expected unescaped narrative, got %v", obj["narrative"])
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		if _, err := Parse("   \n  "); err == nil {
			t.Error("expected error for empty input")
		}
	})

	t.Run("NoUsableObject", func(t *testing.T) {
		if _, err := Parse("I cannot assess this transaction."); err == nil {
			t.Error("expected error when nothing parses")
		}
	})

	t.Run("NullLiteralIsNotAnObject", func(t *testing.T) {
		// json.Unmarshal accepts "null" into a map without error, leaving it
		// nil; the parser must not hand that downstream as a usable object.
		for _, raw := range []string{"null", "```json\nnull\n```", "the answer is null"} {
			obj, err := Parse(raw)
			if err == nil {
				t.Errorf("expected error for %q, got object %v", raw, obj)
			}
		}
	})
}

func TestExtractBalanced(t *testing.T) {
	t.Run("NestedObjects", func(t *testing.T) {
		s := `prefix {"a": {"b": 1}} suffix`
		got, ok := extractBalanced(s)
		if !ok || got != `{"a": {"b": 1}}` {
			t.Errorf("expected nested object extracted, got %q (%v)", got, ok)
		}
	})

	t.Run("EscapedQuoteInString", func(t *testing.T) {
		s := `{"a": "quote \" and brace }"}`
		got, ok := extractBalanced(s)
		if !ok || got != s {
			t.Errorf("expected full object, got %q (%v)", got, ok)
		}
	})

	t.Run("Unbalanced", func(t *testing.T) {
		if _, ok := extractBalanced(`{"a": 1`); ok {
			t.Error("expected no extraction for unbalanced braces")
		}
	})

	t.Run("NoBrace", func(t *testing.T) {
		if _, ok := extractBalanced("plain text"); ok {
			t.Error("expected no extraction without a brace")
		}
	})
}

package domain

// Pattern names produced by the scoring engine.
const (
	PatternAmountAnomaly  = "amount_anomaly"
	PatternCardTesting    = "card_testing"
	PatternTimeAnomaly    = "time_anomaly"
	PatternVelocity       = "velocity"
	PatternDeclineAnomaly = "decline_anomaly"
	PatternCrossMerchant  = "cross_merchant"
)

// PatternScore is the output of a single detector.
type PatternScore struct {
	Pattern string         `json:"pattern"`
	Score   float64        `json:"score"` // in [0,1]
	Weight  float64        `json:"weight"`
	Details map[string]any `json:"details,omitempty"`
}

// Severity is the ordinal risk label derived from the pattern scores.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Rank maps a severity to its position on the LOW < MEDIUM < HIGH < CRITICAL
// ordinal. UNKNOWN ranks below LOW so a missing assessment never outranks a
// real one.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// NormalizeSeverity maps arbitrary model output onto the known severity set.
// Anything unrecognized becomes MEDIUM so a malformed label is neither
// silently alarming nor silently benign.
func NormalizeSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityUnknown:
		return Severity(s)
	}
	return SeverityMedium
}

// FeatureAttribution is a per-pattern share of the total weighted score,
// used for explainability reporting only, never for classification.
type FeatureAttribution struct {
	Pattern      string  `json:"pattern"`
	Contribution float64 `json:"contribution"` // score * weight
	Percent      float64 `json:"percent"`      // of total positive contributions
	Top          bool    `json:"top"`
}

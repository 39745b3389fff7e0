package domain

// RuleConfig defines a tenant-authored screening rule. Matches from these
// rules feed the feature extractor's rule-match signal and are stored with
// the investigation for audit.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the transaction under investigation
	Expression string `json:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	// Rule weight in the rule-match signal
	Weight float64 `json:"weight"`

	Enabled bool `json:"enabled"`
}

// RuleBand maps a score range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	SubRuleRef string   `json:"subRuleRef"` // e.g., ".pass", ".match", ".review"
	Reason     string   `json:"reason"`
}

// RuleMatch is the output of a rule evaluation against the transaction.
type RuleMatch struct {
	RuleID     string  `json:"ruleId"`
	TenantID   string  `json:"tenantId"`
	TxID       string  `json:"txId"`
	SubRuleRef string  `json:"subRuleRef"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Weight     float64 `json:"weight"`
	ProcessMs  int64   `json:"processMs"`
}

// Matched reports whether the rule actually fired (as opposed to passing
// cleanly or erroring out).
func (m RuleMatch) Matched() bool {
	return m.SubRuleRef == RuleOutcomeMatch || m.SubRuleRef == RuleOutcomeReview
}

// Predefined rule outcomes
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeMatch  = ".match"
	RuleOutcomeReview = ".review"
	RuleOutcomeError  = ".err"
)

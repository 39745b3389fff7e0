package domain

import (
	"fmt"
	"time"
)

// TransactionContext is the immutable per-investigation view of the
// transaction under review. It is built once from the raw input record and
// never mutated afterwards.
type TransactionContext struct {
	TxID     string `json:"txId"`
	TenantID string `json:"tenantId"`

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	MerchantID string `json:"merchantId"`
	CardID     string `json:"cardId"`

	// Timestamp is zero when the input carried no parseable timestamp.
	Timestamp time.Time `json:"timestamp"`

	Status        string `json:"status"` // "approved", "declined", ...
	DeclineReason string `json:"declineReason,omitempty"`

	// Upstream scores; zero when absent.
	VelocityScore float64 `json:"velocityScore,omitempty"`
	FraudScore    float64 `json:"fraudScore,omitempty"`

	MerchantRiskCategory string `json:"merchantRiskCategory,omitempty"`
	IPCountry            string `json:"ipCountry,omitempty"`
	CardCountry          string `json:"cardCountry,omitempty"`

	// Raw retains the original record for the evidence assembly layer,
	// which resolves boolean indicators through legacy alias fields.
	Raw Record `json:"-"`
}

// NewTransactionContext builds a context from a raw transaction record.
// Absent fields default to zero values; malformed inputs never fail here
// because the pattern engine must always produce a severity.
func NewTransactionContext(tenantID string, rec Record) *TransactionContext {
	tc := &TransactionContext{
		TenantID: tenantID,
		Raw:      rec,
	}
	tc.TxID = rec.String("transaction_id", "tx_id", "id")
	tc.Amount, _ = rec.Float("amount")
	tc.Currency = rec.String("currency")
	tc.MerchantID = rec.String("merchant_id", "merchantId")
	tc.CardID = rec.String("card_id", "cardId")
	tc.Timestamp, _ = rec.Time("transaction_timestamp", "timestamp", "created_at")
	tc.Status = rec.String("status")
	tc.DeclineReason = rec.String("decline_reason", "declineReason")
	tc.VelocityScore, _ = rec.Float("velocity_score")
	tc.FraudScore, _ = rec.Float("fraud_score")
	tc.MerchantRiskCategory = rec.String("merchant_risk_category", "merchant_category_risk")
	tc.IPCountry = rec.String("ip_country", "ipCountry")
	tc.CardCountry = rec.String("card_country", "cardCountry")
	return tc
}

// HistoryEntry is a single prior transaction from the card or merchant
// history, already lifted out of its raw record form.
type HistoryEntry struct {
	TxID          string    `json:"txId"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	MerchantID    string    `json:"merchantId"`
	CardID        string    `json:"cardId"`
	DeclineReason string    `json:"declineReason,omitempty"`
}

// NewHistoryEntry lifts a raw history record into a typed entry.
func NewHistoryEntry(rec Record) HistoryEntry {
	e := HistoryEntry{
		TxID:          rec.String("transaction_id", "tx_id", "id"),
		Status:        rec.String("status"),
		MerchantID:    rec.String("merchant_id", "merchantId"),
		CardID:        rec.String("card_id", "cardId"),
		DeclineReason: rec.String("decline_reason"),
	}
	e.Amount, _ = rec.Float("amount")
	e.Timestamp, _ = rec.Time("transaction_timestamp", "timestamp", "created_at")
	return e
}

// AsRecord converts the entry back to the canonical raw record form used
// by investigation requests.
func (e HistoryEntry) AsRecord() Record {
	rec := Record{
		"transaction_id": e.TxID,
		"amount":         e.Amount,
		"status":         e.Status,
		"merchant_id":    e.MerchantID,
		"card_id":        e.CardID,
	}
	if !e.Timestamp.IsZero() {
		rec["transaction_timestamp"] = e.Timestamp.UTC().Format(time.RFC3339)
	}
	if e.DeclineReason != "" {
		rec["decline_reason"] = e.DeclineReason
	}
	return rec
}

// DedupKey identifies an entry across overlapping card and merchant
// histories. Business transaction id wins; otherwise a synthetic composite.
func (e HistoryEntry) DedupKey() string {
	if e.TxID != "" {
		return e.TxID
	}
	return fmt.Sprintf("%s|%s|%d|%.2f|%s", e.CardID, e.MerchantID, e.Timestamp.Unix(), e.Amount, e.Status)
}

// WindowStats is the per-window aggregate over the deduplicated history.
type WindowStats struct {
	WindowHours     int     `json:"windowHours"`
	Count           int     `json:"count"`
	TotalAmount     float64 `json:"totalAmount"`
	DeclineCount    int     `json:"declineCount"`
	UniqueMerchants int     `json:"uniqueMerchants"`
	UniqueCards     int     `json:"uniqueCards"`
}

// Signal is a discrete derived observation (e.g. "high_amount", "burst_1h").
type Signal struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// FeatureSet is everything the extractor hands to the scoring stages.
type FeatureSet struct {
	Windows     map[int]WindowStats `json:"windows"` // keyed by window hours
	Signals     []Signal            `json:"signals"`
	History     []HistoryEntry      `json:"-"` // deduplicated, merged card+merchant
	CardHistory []HistoryEntry      `json:"-"` // card-only, chronological
	RuleMatches []RuleMatch         `json:"ruleMatches,omitempty"`
	Reviews     []Record            `json:"-"`
}

// HasSignal reports whether a named signal is present.
func (f *FeatureSet) HasSignal(name string) bool {
	for _, s := range f.Signals {
		if s.Name == name {
			return true
		}
	}
	return false
}

// SignalValue returns a named signal's value, or 0 if absent.
func (f *FeatureSet) SignalValue(name string) float64 {
	for _, s := range f.Signals {
		if s.Name == name {
			return s.Value
		}
	}
	return 0
}

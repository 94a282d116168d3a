// Package mandate holds the mandate record, its lifecycle rules and the
// per-session store of mandates.
package mandate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the UTC, second-precision, Z-suffixed ISO-8601 layout used for
// every timestamp the core emits.
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// Type is the kind of authorization a mandate represents.
type Type string

const (
	TypeCart    Type = "CartMandate"
	TypeIntent  Type = "IntentMandate"
	TypePayment Type = "PaymentMandate"
)

// Valid reports whether t is one of the known mandate types.
func (t Type) Valid() bool {
	switch t {
	case TypeCart, TypeIntent, TypePayment:
		return true
	}
	return false
}

// Status is the lifecycle position of a mandate.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusIssued   Status = "ISSUED"
	StatusPending  Status = "PENDING"
	StatusSettled  Status = "SETTLED"
	StatusFailed   Status = "FAILED"
	StatusRevoked  Status = "REVOKED"
	StatusExecuted Status = "EXECUTED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusIssued, StatusPending, StatusSettled,
		StatusFailed, StatusRevoked, StatusExecuted:
		return true
	}
	return false
}

// Live reports whether a mandate in status s can still be screened,
// converted or executed.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusIssued
}

// Currency is an ISO-4217 code accepted by the simulated rails.
type Currency string

const (
	CurrencyAED Currency = "AED"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{CurrencyAED, CurrencyUSD, CurrencyEUR}

// Valid reports whether c is supported.
func (c Currency) Valid() bool {
	for _, known := range Currencies {
		if c == known {
			return true
		}
	}
	return false
}

// Mandate is a user's authorization for a future or immediate payment.
// MandateID, Amount, Currency, CreatedAt and IssuedBy never change after
// creation.
type Mandate struct {
	MandateID   string         `json:"mandate_id"`
	MandateType Type           `json:"mandate_type"`
	Amount      float64        `json:"amount"`
	Currency    Currency       `json:"currency"`
	CreatedAt   string         `json:"created_at"`
	IssuedBy    string         `json:"issued_by"`
	Status      Status         `json:"status"`
	Meta        map[string]any `json:"meta"`
}

// Clone returns a deep copy so callers can never reach the stored record.
func (m *Mandate) Clone() *Mandate {
	c := *m
	c.Meta = cloneMeta(m.Meta)
	return &c
}

// Snapshot returns the mandate as a plain map, the form that gets signed and
// handed to the settlement gateway.
func (m *Mandate) Snapshot() map[string]any {
	return map[string]any{
		"mandate_id":   m.MandateID,
		"mandate_type": string(m.MandateType),
		"amount":       m.Amount,
		"currency":     string(m.Currency),
		"created_at":   m.CreatedAt,
		"issued_by":    m.IssuedBy,
		"status":       string(m.Status),
		"meta":         cloneMeta(m.Meta),
	}
}

// NewID returns a fresh mandate identifier of the form M-XXXXXXXXXX.
func NewID() string {
	return "M-" + hexPrefix(10)
}

// hexPrefix returns the first n upper-case hex digits of a random UUID.
func hexPrefix(n int) string {
	h := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(h[:n])
}

// NewRequest carries the caller-supplied fields of a new mandate.
type NewRequest struct {
	MandateType Type           `json:"mandate_type" yaml:"mandate_type"`
	Amount      float64        `json:"amount" yaml:"amount"`
	Currency    Currency       `json:"currency" yaml:"currency"`
	IssuedBy    string         `json:"issued_by" yaml:"issued_by"`
	Meta        map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Validate checks the request against the creation rules.
func (r NewRequest) Validate() error {
	if !r.MandateType.Valid() {
		return &ValidationError{Field: "mandate_type", Reason: fmt.Sprintf("unsupported mandate type %q", r.MandateType)}
	}
	if math.IsInf(r.Amount, 0) || !(r.Amount > 0) {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("amount must be positive and finite, got %v", r.Amount)}
	}
	if !r.Currency.Valid() {
		return &ValidationError{Field: "currency", Reason: fmt.Sprintf("unsupported currency %q", r.Currency)}
	}
	// Meta is signed as JSON with the rest of the mandate.
	if _, err := json.Marshal(r.Meta); err != nil {
		return &ValidationError{Field: "meta", Reason: fmt.Sprintf("meta is not representable as JSON: %v", err)}
	}
	return nil
}

// New validates req and builds a mandate in its initial status. The caller
// supplies id and creation time so the session controls uniqueness and clock.
func New(id string, req NewRequest, now time.Time) (*Mandate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &Mandate{
		MandateID:   id,
		MandateType: req.MandateType,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CreatedAt:   FormatTime(now),
		IssuedBy:    req.IssuedBy,
		Status:      InitialStatus(req.MandateType),
		Meta:        cloneMeta(req.Meta),
	}, nil
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMeta(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

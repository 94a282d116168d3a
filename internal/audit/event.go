// Package audit records the append-only trail of mandate lifecycle events.
package audit

import (
	"encoding/json"

	"github.com/akhil-rao/ap2-aani-demo/internal/gateway"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/risk"
)

// Kind identifies the lifecycle transition an event records.
type Kind string

const (
	KindMandateIssued     Kind = "MANDATE_ISSUED"
	KindConsentRegistered Kind = "CBUAE_CONSENT_REGISTERED"
	KindRiskCheck         Kind = "RISK_CHECK"
	KindIntentConverted   Kind = "INTENT_CONVERTED"
	KindMandateRevoked    Kind = "MANDATE_REVOKED"
	KindPaymentExecuted   Kind = "PAYMENT_EXECUTED"
)

// ConsentNote is the note recorded on consent registration.
const ConsentNote = "Consent registered with CBUAE API Hub (mock)"

// Event is one audit record. The concrete types below are the only
// implementations; each embeds Header.
type Event interface {
	Kind() Kind
	Mandate() string
	Time() string
	sealed()
}

// Header carries the fields common to every event.
type Header struct {
	Event     Kind   `json:"event"`
	MandateID string `json:"mandate_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h Header) Kind() Kind      { return h.Event }
func (h Header) Mandate() string { return h.MandateID }
func (h Header) Time() string    { return h.Timestamp }
func (Header) sealed()           {}

// Tag is the integrity tag of a signed event together with the canonical
// payload it was computed over.
type Tag struct {
	Signature     string          `json:"signature"`
	SignedPayload json.RawMessage `json:"signed_payload"`
}

// Tagged is implemented by events that carry a Tag.
type Tagged interface {
	Event
	IntegrityTag() Tag
}

func (t Tag) IntegrityTag() Tag { return t.detached() }

// detached returns t with its own copy of the payload bytes.
func (t Tag) detached() Tag {
	if t.SignedPayload != nil {
		t.SignedPayload = append(json.RawMessage(nil), t.SignedPayload...)
	}
	return t
}

// detach returns e with no memory shared with the caller's copy.
func detach(e Event) Event {
	switch v := e.(type) {
	case MandateIssued:
		v.Tag = v.Tag.detached()
		return v
	case IntentConverted:
		v.Tag = v.Tag.detached()
		return v
	case MandateRevoked:
		v.Tag = v.Tag.detached()
		return v
	case PaymentExecuted:
		v.Tag = v.Tag.detached()
		return v
	}
	return e
}

// Agent identifies the software agent acting for the user.
type Agent struct {
	AgentID string `json:"agent_id" yaml:"agent_id"`
	Name    string `json:"name" yaml:"name"`
	PubKey  string `json:"pubkey" yaml:"pubkey"`
}

// MandateIssued records the creation of a mandate.
type MandateIssued struct {
	Header
	MandateType mandate.Type `json:"mandate_type"`
	Agent       string       `json:"agent"`
	User        string       `json:"user"`
	Tag
}

// ConsentRegistered records the (mock) registration of an intent's consent
// with the regulator.
type ConsentRegistered struct {
	Header
	Note string `json:"note"`
}

// RiskCheck records one screening result.
type RiskCheck struct {
	Header
	RiskLevel risk.Level `json:"risk_level"`
	Note      string     `json:"note"`
}

// IntentConverted records an intent becoming a payment mandate.
type IntentConverted struct {
	Header
	MandateType mandate.Type   `json:"mandate_type"`
	Status      mandate.Status `json:"status"`
	Tag
}

// MandateRevoked records a revocation.
type MandateRevoked struct {
	Header
	PreviousStatus mandate.Status `json:"previous_status"`
	Status         mandate.Status `json:"status"`
	Tag
}

// PaymentExecuted records a settlement attempt and the full rail response.
type PaymentExecuted struct {
	Header
	TransactionID string                     `json:"transaction_id"`
	Status        mandate.SettlementOutcome  `json:"status"`
	Rail          string                     `json:"rail"`
	Agent         Agent                      `json:"agent"`
	Response      gateway.SettlementResponse `json:"response"`
	Tag
}

func header(kind Kind, mandateID, ts string) Header {
	return Header{Event: kind, MandateID: mandateID, Timestamp: ts}
}

// NewMandateIssued builds a MANDATE_ISSUED event.
func NewMandateIssued(ts string, m *mandate.Mandate, agent, user string, tag Tag) MandateIssued {
	return MandateIssued{
		Header:      header(KindMandateIssued, m.MandateID, ts),
		MandateType: m.MandateType,
		Agent:       agent,
		User:        user,
		Tag:         tag,
	}
}

// NewConsentRegistered builds a CBUAE_CONSENT_REGISTERED event.
func NewConsentRegistered(ts, mandateID string) ConsentRegistered {
	return ConsentRegistered{Header: header(KindConsentRegistered, mandateID, ts), Note: ConsentNote}
}

// NewRiskCheck builds a RISK_CHECK event.
func NewRiskCheck(ts, mandateID string, level risk.Level) RiskCheck {
	return RiskCheck{Header: header(KindRiskCheck, mandateID, ts), RiskLevel: level, Note: risk.Note}
}

// NewIntentConverted builds an INTENT_CONVERTED event from the converted mandate.
func NewIntentConverted(ts string, m *mandate.Mandate, tag Tag) IntentConverted {
	return IntentConverted{
		Header:      header(KindIntentConverted, m.MandateID, ts),
		MandateType: m.MandateType,
		Status:      m.Status,
		Tag:         tag,
	}
}

// NewMandateRevoked builds a MANDATE_REVOKED event.
func NewMandateRevoked(ts string, m *mandate.Mandate, previous mandate.Status, tag Tag) MandateRevoked {
	return MandateRevoked{
		Header:         header(KindMandateRevoked, m.MandateID, ts),
		PreviousStatus: previous,
		Status:         m.Status,
		Tag:            tag,
	}
}

// NewPaymentExecuted builds a PAYMENT_EXECUTED event.
func NewPaymentExecuted(ts, mandateID string, agent Agent, resp gateway.SettlementResponse, tag Tag) PaymentExecuted {
	return PaymentExecuted{
		Header:        header(KindPaymentExecuted, mandateID, ts),
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
		Rail:          resp.Rail,
		Agent:         agent,
		Tag:           tag,
		Response:      resp,
	}
}

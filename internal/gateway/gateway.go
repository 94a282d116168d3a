// Package gateway simulates an external payment processor. Settlement
// outcomes are drawn at random and do not depend on the mandate; this is the
// system's simulation boundary.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/sim"
)

// Outcomes lists the statuses a rail can report, in draw order.
var Outcomes = []mandate.SettlementOutcome{
	mandate.OutcomeSettled,
	mandate.OutcomePending,
	mandate.OutcomeFailed,
}

type outcomeText struct {
	code      string
	narrative string
}

var outcomeTexts = map[mandate.SettlementOutcome]outcomeText{
	mandate.OutcomeSettled: {"00", "Payment successful"},
	mandate.OutcomePending: {"09", "Payment pending"},
	mandate.OutcomeFailed:  {"05", "Payment failed"},
}

// Snapshot is the part of a mandate the processor sees.
type Snapshot struct {
	MandateID string
	Amount    float64
	Currency  mandate.Currency
}

// ResponseMeta identifies the processor that produced a response.
type ResponseMeta struct {
	Processor string `json:"processor"`
	Mode      string `json:"mode"`
}

// SettlementResponse is what a rail returns for one payment instruction.
type SettlementResponse struct {
	TransactionID  string                    `json:"transaction_id"`
	Status         mandate.SettlementOutcome `json:"status"`
	SettlementTime string                    `json:"settlement_time,omitempty"`
	Amount         string                    `json:"amount"`
	Currency       mandate.Currency          `json:"currency"`
	Rail           string                    `json:"rail"`
	ProcessingCode string                    `json:"processing_code"`
	Narrative      string                    `json:"narrative"`
	Meta           ResponseMeta              `json:"meta"`
}

// Gateway settles a payment on a named rail.
type Gateway interface {
	Settle(ctx context.Context, snap Snapshot, rail string) (*SettlementResponse, error)
	Rails() []Rail
}

// Simulator is the mock Gateway.
type Simulator struct {
	registry *Registry
	rand     sim.RandomSource
	now      func() time.Time
	newTxID  func() string
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithRandom sets the source used to pick outcomes.
func WithRandom(src sim.RandomSource) Option {
	return func(s *Simulator) { s.rand = src }
}

// WithClock sets the clock used for settlement times.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithTxIDs sets the transaction id generator.
func WithTxIDs(gen func() string) Option {
	return func(s *Simulator) { s.newTxID = gen }
}

// NewSimulator returns a Simulator routing to the rails in registry.
func NewSimulator(registry *Registry, opts ...Option) *Simulator {
	s := &Simulator{
		registry: registry,
		rand:     sim.Uniform{},
		now:      time.Now,
		newTxID:  NewTxID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTxID returns a transaction id of the form TX-XXXXXXXXXXXX.
func NewTxID() string {
	h := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TX-" + strings.ToUpper(h[:12])
}

// Rails returns the rails this simulator accepts.
func (s *Simulator) Rails() []Rail { return s.registry.Rails() }

// Settle draws an outcome for snap on rail. It fails only for an unknown rail
// and never has side effects beyond the returned response.
func (s *Simulator) Settle(_ context.Context, snap Snapshot, rail string) (*SettlementResponse, error) {
	r, err := s.registry.Get(rail)
	if err != nil {
		return nil, err
	}
	outcome := sim.Pick(s.rand, Outcomes)
	text := outcomeTexts[outcome]

	resp := &SettlementResponse{
		TransactionID:  s.newTxID(),
		Status:         outcome,
		Amount:         fmt.Sprintf("%.2f", snap.Amount),
		Currency:       snap.Currency,
		Rail:           r.Name,
		ProcessingCode: text.code,
		Narrative:      text.narrative,
		Meta:           ResponseMeta{Processor: r.Processor, Mode: r.Mode},
	}
	if outcome == mandate.OutcomeSettled {
		resp.SettlementTime = mandate.FormatTime(s.now())
	}
	return resp, nil
}

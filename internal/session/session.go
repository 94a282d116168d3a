// Package session implements the mandate lifecycle operations. A Session owns
// one mandate store and one audit log; nothing is shared between sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/akhil-rao/ap2-aani-demo/internal/audit"
	"github.com/akhil-rao/ap2-aani-demo/internal/gateway"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/metrics"
	"github.com/akhil-rao/ap2-aani-demo/internal/risk"
	"github.com/akhil-rao/ap2-aani-demo/internal/signing"
)

// maxIDAttempts bounds the retries when a generated mandate id collides.
const maxIDAttempts = 16

// Config wires a Session's collaborators. Signer and Gateway are required.
type Config struct {
	ID             string
	Signer         *signing.Signer
	Gateway        gateway.Gateway
	Screener       risk.Screener
	Agent          audit.Agent
	MaxAuditEvents int
	Now            func() time.Time
	NewMandateID   func() string
	Logger         *slog.Logger
}

// Session is one user's consent workflow state. It is not safe for
// concurrent use; callers serialize operations (Manager does so per session).
type Session struct {
	id       string
	store    *mandate.Store
	log      *audit.Log
	signer   *signing.Signer
	gw       gateway.Gateway
	screener risk.Screener
	agent    audit.Agent
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// New returns an empty Session.
func New(cfg Config) (*Session, error) {
	if cfg.Signer == nil {
		return nil, errors.New("session: signer is required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("session: gateway is required")
	}
	s := &Session{
		id:       cfg.ID,
		store:    mandate.NewStore(),
		signer:   cfg.Signer,
		gw:       cfg.Gateway,
		screener: cfg.Screener,
		agent:    cfg.Agent,
		now:      cfg.Now,
		newID:    cfg.NewMandateID,
		logger:   cfg.Logger,
	}
	if s.screener == nil {
		s.screener = risk.NewRandomScreener(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = mandate.NewID
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session", s.id)
	s.log = audit.NewLog(
		audit.WithCapacity(cfg.MaxAuditEvents),
		audit.WithMandateLookup(s.store.Has),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Agent returns the agent identity acting in this session.
func (s *Session) Agent() audit.Agent { return s.agent }

// Rails returns the settlement rails this session can execute on.
func (s *Session) Rails() []gateway.Rail { return s.gw.Rails() }

func (s *Session) timestamp() string { return mandate.FormatTime(s.now()) }

// seal computes the integrity tag over payload and keeps the canonical bytes
// it covers.
func (s *Session) seal(payload any) (audit.Tag, error) {
	canonical, err := signing.Canonicalize(payload)
	if err != nil {
		return audit.Tag{}, err
	}
	sig, err := s.signer.Sign(json.RawMessage(canonical))
	if err != nil {
		return audit.Tag{}, err
	}
	return audit.Tag{Signature: sig, SignedPayload: canonical}, nil
}

func (s *Session) record(events ...audit.Event) error {
	for _, e := range events {
		if err := s.log.Append(e); err != nil {
			return err
		}
		metrics.AuditEvents.WithLabelValues(string(e.Kind())).Inc()
	}
	return nil
}

func (s *Session) reserve(op string, n int) error {
	if !s.log.Fits(n) {
		return fmt.Errorf("%s: %w", op, audit.ErrLogFull)
	}
	return nil
}

func observe(op mandate.Op, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	metrics.Transitions.WithLabelValues(string(op), result).Inc()
}

// CreateMandate issues a new mandate, puts it at the head of the store and
// records MANDATE_ISSUED (plus CBUAE_CONSENT_REGISTERED for an intent).
// The issuing agent is meta["agent"] when it is a string, otherwise the
// session's agent.
func (s *Session) CreateMandate(_ context.Context, req mandate.NewRequest) (*mandate.Mandate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	events := 1
	if req.MandateType == mandate.TypeIntent {
		events = 2
	}
	if err := s.reserve("create", events); err != nil {
		return nil, err
	}

	id, err := s.freshID()
	if err != nil {
		return nil, err
	}
	m, err := mandate.New(id, req, s.now())
	if err != nil {
		return nil, err
	}
	tag, err := s.seal(m.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", id, err)
	}
	agent := s.agent.AgentID
	if a, ok := m.Meta["agent"].(string); ok && a != "" {
		agent = a
	}

	if err := s.store.Insert(m); err != nil {
		return nil, err
	}
	ts := s.timestamp()
	recorded := []audit.Event{audit.NewMandateIssued(ts, m, agent, m.IssuedBy, tag)}
	if m.MandateType == mandate.TypeIntent {
		recorded = append(recorded, audit.NewConsentRegistered(ts, m.MandateID))
	}
	if err := s.record(recorded...); err != nil {
		return nil, fmt.Errorf("create %s: %w", id, err)
	}

	metrics.MandatesCreated.WithLabelValues(string(m.MandateType)).Inc()
	s.logger.Info("mandate issued", "op", "create", "mandate_id", m.MandateID, "mandate_type", m.MandateType,
		"amount", m.Amount, "currency", m.Currency)
	return m.Clone(), nil
}

func (s *Session) freshID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		if id := s.newID(); !s.store.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("create: no unused mandate id after %d attempts", maxIDAttempts)
}

// ListMandates returns copies of the mandates matching f, newest first.
func (s *Session) ListMandates(f mandate.Filter) ([]*mandate.Mandate, error) {
	return s.store.List(f)
}

// Mandate returns a copy of one mandate.
func (s *Session) Mandate(id string) (*mandate.Mandate, error) {
	return s.store.Get(id)
}

type screenable struct{}

func (screenable) Match(m *mandate.Mandate) (bool, error) { return mandate.CheckScreen(m) == nil, nil }

type payable struct{}

func (payable) Match(m *mandate.Mandate) (bool, error) { return mandate.Payable(m), nil }

// Screenable lists the mandates a risk screen may run against.
func (s *Session) Screenable() []*mandate.Mandate {
	out, _ := s.store.List(mandate.Filter{Where: screenable{}})
	return out
}

// Payable lists the mandates that can be executed.
func (s *Session) Payable() []*mandate.Mandate {
	out, _ := s.store.List(mandate.Filter{Where: payable{}})
	return out
}

// transition applies change to a working copy of mandate id, builds the
// audit event from the result, and commits both only if every step succeeds.
func (s *Session) transition(
	op mandate.Op,
	id string,
	change func(m *mandate.Mandate) error,
	event func(before, after *mandate.Mandate) (audit.Event, error),
) (*mandate.Mandate, error) {
	before, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	after := before.Clone()
	if err := change(after); err != nil {
		return nil, err
	}
	if err := s.reserve(string(op), 1); err != nil {
		return nil, err
	}
	ev, err := event(before, after)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, id, err)
	}
	committed, err := s.store.Update(id, func(m *mandate.Mandate) error {
		m.MandateType = after.MandateType
		m.Status = after.Status
		m.Meta = after.Meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.record(ev); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, id, err)
	}
	s.logger.Info("mandate transition", "op", op, "mandate_id", id,
		"from", before.Status, "to", committed.Status, "mandate_type", committed.MandateType)
	return committed, nil
}

// ConvertMandate turns a live IntentMandate into an ISSUED PaymentMandate.
func (s *Session) ConvertMandate(_ context.Context, id string) (m *mandate.Mandate, err error) {
	defer func() { observe(mandate.OpConvert, err) }()
	return s.transition(mandate.OpConvert, id, mandate.Convert,
		func(_, after *mandate.Mandate) (audit.Event, error) {
			tag, err := s.seal(after.Snapshot())
			if err != nil {
				return nil, err
			}
			return audit.NewIntentConverted(s.timestamp(), after, tag), nil
		})
}

// RevokeMandate withdraws a mandate. REVOKED is terminal; revoking twice
// fails with an InvalidStateError.
func (s *Session) RevokeMandate(_ context.Context, id string) (m *mandate.Mandate, err error) {
	defer func() { observe(mandate.OpRevoke, err) }()
	return s.transition(mandate.OpRevoke, id, mandate.Revoke,
		func(before, after *mandate.Mandate) (audit.Event, error) {
			tag, err := s.seal(after.Snapshot())
			if err != nil {
				return nil, err
			}
			return audit.NewMandateRevoked(s.timestamp(), after, before.Status, tag), nil
		})
}

// RiskScreen runs the simulated AML screen against a live mandate and
// records RISK_CHECK. The mandate itself is not changed.
func (s *Session) RiskScreen(ctx context.Context, id string) (level risk.Level, err error) {
	defer func() { observe(mandate.OpScreen, err) }()
	m, err := s.store.Get(id)
	if err != nil {
		return "", err
	}
	if err := mandate.CheckScreen(m); err != nil {
		return "", err
	}
	if err := s.reserve(string(mandate.OpScreen), 1); err != nil {
		return "", err
	}
	level, err = s.screener.Screen(ctx, m)
	if err != nil {
		return "", fmt.Errorf("risk-screen %s: %w", id, err)
	}
	if err := s.record(audit.NewRiskCheck(s.timestamp(), id, level)); err != nil {
		return "", fmt.Errorf("risk-screen %s: %w", id, err)
	}
	metrics.RiskChecks.WithLabelValues(string(level)).Inc()
	s.logger.Info("risk screened", "op", mandate.OpScreen, "mandate_id", id, "risk_level", level)
	return level, nil
}

// ExecuteMandate sends a payable mandate to rail, applies the outcome to the
// mandate (SETTLED becomes EXECUTED, PENDING and FAILED carry over) and
// records PAYMENT_EXECUTED with the full response.
func (s *Session) ExecuteMandate(ctx context.Context, id, rail string) (resp *gateway.SettlementResponse, err error) {
	defer func() { observe(mandate.OpExecute, err) }()
	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if err := mandate.CheckExecute(current); err != nil {
		return nil, err
	}
	if err := s.reserve(string(mandate.OpExecute), 1); err != nil {
		return nil, err
	}
	resp, err = s.gw.Settle(ctx, gateway.Snapshot{
		MandateID: current.MandateID,
		Amount:    current.Amount,
		Currency:  current.Currency,
	}, rail)
	if err != nil {
		return nil, err
	}

	settled := *resp
	_, err = s.transition(mandate.OpExecute, id,
		func(m *mandate.Mandate) error { return mandate.ApplySettlement(m, settled.Status) },
		func(_, _ *mandate.Mandate) (audit.Event, error) {
			tag, err := s.seal(map[string]any{"mandate_id": id, "txid": settled.TransactionID})
			if err != nil {
				return nil, err
			}
			return audit.NewPaymentExecuted(s.timestamp(), id, s.agent, settled, tag), nil
		})
	if err != nil {
		return nil, err
	}
	metrics.PaymentsExecuted.WithLabelValues(settled.Rail, string(settled.Status)).Inc()
	return resp, nil
}

// ListAuditEvents returns the audit trail in the requested order.
func (s *Session) ListAuditEvents(order audit.Order) []audit.Event {
	return s.log.List(order)
}

// AuditLen returns the number of recorded events.
func (s *Session) AuditLen() int { return s.log.Len() }

// ExportAuditLog renders the full trail, chronologically, as JSON.
func (s *Session) ExportAuditLog() ([]byte, error) {
	return s.log.Export()
}

// ExportMandate renders one mandate as JSON.
func (s *Session) ExportMandate(id string) ([]byte, error) {
	m, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, err)
	}
	return b, nil
}

// VerifyAuditLog rechecks every integrity tag in the trail.
func (s *Session) VerifyAuditLog() []audit.Issue {
	return audit.Verify(s.log.List(audit.Chronological), s.signer)
}

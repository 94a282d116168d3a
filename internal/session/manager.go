package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/akhil-rao/ap2-aani-demo/internal/config"
	"github.com/akhil-rao/ap2-aani-demo/internal/gateway"
	"github.com/akhil-rao/ap2-aani-demo/internal/metrics"
	"github.com/akhil-rao/ap2-aani-demo/internal/risk"
	"github.com/akhil-rao/ap2-aani-demo/internal/signing"
	"github.com/akhil-rao/ap2-aani-demo/internal/sim"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Manager holds the live sessions and builds new ones from the current
// configuration. Operations on one session are serialized; different
// sessions run independently.
type Manager struct {
	cfg      atomic.Pointer[config.Config]
	mu       sync.RWMutex
	sessions map[string]*entry
	source   sim.RandomSource
	now      func() time.Time
	logger   *slog.Logger
}

type entry struct {
	mu sync.Mutex
	s  *Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRandom sets the randomness shared by every session's gateway and screener.
func WithRandom(src sim.RandomSource) ManagerOption {
	return func(m *Manager) { m.source = src }
}

// WithClock sets the time source for new sessions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger sessions derive theirs from.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager using cfg for new sessions.
func NewManager(cfg *config.Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*entry),
		source:   sim.Uniform{},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cfg.Store(cfg)
	return m
}

// SwapConfig atomically replaces the configuration. Existing sessions keep
// the settings they were created with.
func (m *Manager) SwapConfig(cfg *config.Config) {
	m.cfg.Store(cfg)
}

// Config returns the configuration new sessions are built from.
func (m *Manager) Config() *config.Config { return m.cfg.Load() }

// Rails returns the rails new sessions will offer.
func (m *Manager) Rails() []gateway.Rail {
	return gateway.NewRegistry(m.cfg.Load().Rails...).Rails()
}

// Create builds a new session, seeds it and registers it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	cfg := m.cfg.Load()

	m.mu.Lock()
	if limit := cfg.Sessions.MaxSessions; limit > 0 && len(m.sessions) >= limit {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	id := uuid.NewString()
	e := &entry{}
	e.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()
	defer e.mu.Unlock()

	s, err := m.build(ctx, id, cfg)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, err
	}
	e.s = s
	metrics.SessionsActive.Inc()
	m.logger.Info("session created", "session", id, "seeded", len(cfg.Seed))
	return s, nil
}

func (m *Manager) build(ctx context.Context, id string, cfg *config.Config) (*Session, error) {
	signer, err := signing.NewSigner(cfg.Signing.Key)
	if err != nil {
		return nil, err
	}
	gw := gateway.NewSimulator(gateway.NewRegistry(cfg.Rails...),
		gateway.WithRandom(m.source),
		gateway.WithClock(m.now),
	)
	s, err := New(Config{
		ID:             id,
		Signer:         signer,
		Gateway:        gw,
		Screener:       risk.NewRandomScreener(m.source),
		Agent:          cfg.Agent,
		MaxAuditEvents: cfg.Audit.MaxEvents,
		Now:            m.now,
		Logger:         m.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := Seed(ctx, s, cfg.Seed); err != nil {
		return nil, err
	}
	return s, nil
}

// With runs fn while holding the session's lock.
func (m *Manager) With(id string, fn func(*Session) error) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s == nil {
		// Create failed after registering the entry.
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return fn(e.s)
}

// Delete discards a session and everything it holds.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	live := e.s != nil
	e.s = nil
	e.mu.Unlock()
	if live {
		metrics.SessionsActive.Dec()
	}
	m.logger.Info("session deleted", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

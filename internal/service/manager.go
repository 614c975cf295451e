package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/logger"
)

// SessionManager owns one Session per identity. It shares nothing between
// sessions except the collaborators they were built with.
type SessionManager struct {
	deps SessionDeps
	cfg  SessionConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager
func NewSessionManager(deps SessionDeps, cfg SessionConfig) *SessionManager {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Policy == nil {
		deps.Policy = NewReconciliationPolicy(deps.Gateway, DefaultReconcileAttempts, DefaultReconcileDelay)
	}
	return &SessionManager{
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Connect returns the identity's session, creating it from the ledger balance
// and the stored streak on first use
func (m *SessionManager) Connect(ctx context.Context, identity string) (*Session, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrUnknownSession)
	}
	if s, ok := m.Get(identity); ok {
		return s, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout())
	balance, err := m.deps.Gateway.GetBalance(callCtx, identity)
	cancel()
	if err != nil {
		return nil, translateLedgerError(err)
	}

	streak := 0
	if p := m.deps.History.LoadPlayer(ctx, identity); p != nil {
		streak = p.Streak
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[identity]; ok {
		return s, nil
	}
	s := NewSession(identity, balance, streak, m.deps, m.cfg)
	m.sessions[identity] = s
	activeSessions.Inc()

	logger.ForIdentity(identity).Info("session connected", "balance", balance, "streak", streak)
	m.deps.History.SavePlayer(ctx, identity, balance, streak)
	return s, nil
}

// Get returns a connected session
func (m *SessionManager) Get(identity string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[identity]
	return s, ok
}

// Must returns a connected session or ErrUnknownSession
func (m *SessionManager) Must(identity string) (*Session, error) {
	s, ok := m.Get(identity)
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Snapshots lists every connected session
func (m *SessionManager) Snapshots() []domain.SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SessionSnapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Disconnect closes and forgets one session
func (m *SessionManager) Disconnect(identity string) {
	m.mu.Lock()
	s, ok := m.sessions[identity]
	delete(m.sessions, identity)
	m.mu.Unlock()

	if ok {
		s.Close()
		activeSessions.Dec()
	}
}

// Close shuts every session down
func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		activeSessions.Dec()
	}
}

func (m *SessionManager) callTimeout() time.Duration {
	if m.cfg.CallTimeout > 0 {
		return m.cfg.CallTimeout
	}
	return DefaultSessionConfig().CallTimeout
}

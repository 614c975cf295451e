package service

import "arebasic/internal/domain"

// event types pushed to connected clients
const (
	EventRoundStarted  = "round_started"
	EventStateChanged  = "state_changed"
	EventRoundResult   = "round_result"
	EventRoundError    = "round_error"
	EventSessionReset  = "session_reset"
	EventSessionClosed = "session_closed"
)

// SessionEvent is a state change worth telling the player about
type SessionEvent struct {
	Type     string                 `json:"type"`
	Snapshot domain.SessionSnapshot `json:"session"`
	Result   *domain.RoundResult    `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Notifier delivers session events; it must not block
type Notifier interface {
	Notify(identity string, event SessionEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, SessionEvent) {}

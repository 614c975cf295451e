package domain

import "time"

// SessionState - stage of the round lifecycle
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateBetPending       SessionState = "bet_pending"
	StateQuestionActive   SessionState = "question_active"
	StateAnswerSubmitting SessionState = "answer_submitting"
	StateEvaluating       SessionState = "evaluating"
	StateResult           SessionState = "result"
	StateTerminated       SessionState = "terminated"
)

// Prompt is the question issued for a round
type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RoundResult is what the player sees once a round is evaluated (or timed out)
type RoundResult struct {
	RoundID   string  `json:"round_id"`
	IsWinner  bool    `json:"is_winner"`
	WinAmount int64   `json:"win_amount"`
	Streak    int     `json:"streak"`
	Balance   int64   `json:"balance"`
	TimedOut  bool    `json:"timed_out"`
	Answer    string  `json:"answer,omitempty"`
	Verdict   Verdict `json:"verdict"`
}

// SessionSnapshot is a read-only copy of a session, safe to hand out
type SessionSnapshot struct {
	Identity     string       `json:"identity"`
	State        SessionState `json:"state"`
	Balance      int64        `json:"balance"`
	Streak       int          `json:"streak"`
	StakeCost    int64        `json:"stake_cost"`
	RoundID      string       `json:"round_id,omitempty"`
	ActivePrompt *Prompt      `json:"active_prompt,omitempty"`
	Deadline     *time.Time   `json:"deadline,omitempty"`
	LastResult   *RoundResult `json:"last_result,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
}

// SecondsLeft returns whole seconds until the deadline, 0 when none is armed
func (s SessionSnapshot) SecondsLeft(now time.Time) int {
	if s.Deadline == nil {
		return 0
	}
	left := s.Deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

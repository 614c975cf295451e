package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/game"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"

	"github.com/google/uuid"
)

// Evaluator judges an answer. It never fails: outages come back as fallback verdicts.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt, answer string) domain.Verdict
}

// PromptSource hands out the question for a round
type PromptSource interface {
	Next(ctx context.Context) (domain.Prompt, error)
}

// ErrRoundAbandoned is returned to callers whose round was discarded by a reset
var ErrRoundAbandoned = errors.New("round abandoned by reset")

// used when the prompt source fails after the stake was already taken
var fallbackPrompt = domain.Prompt{ID: "fallback", Text: "What's the most basic thing about modern culture?"}

// SessionConfig holds per-session economics and timing
type SessionConfig struct {
	StakeCost     int64
	RoundDuration time.Duration
	CallTimeout   time.Duration
}

// DefaultSessionConfig matches the game defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		StakeCost:     1,
		RoundDuration: 15 * time.Second,
		CallTimeout:   12 * time.Second,
	}
}

// SessionDeps are the collaborators a session talks to
type SessionDeps struct {
	Gateway   ledger.Gateway
	Policy    *ReconciliationPolicy
	Evaluator Evaluator
	Prompts   PromptSource
	Notifier  Notifier
	History   *HistoryService
}

// RoundStart is returned once a bet is confirmed and the countdown armed
type RoundStart struct {
	RoundID         string        `json:"round_id"`
	Prompt          domain.Prompt `json:"prompt"`
	Deadline        time.Time     `json:"deadline"`
	DeadlineSeconds int           `json:"deadline_seconds"`
	Balance         int64         `json:"balance"`
}

// Session is the state machine for one player. All balance and streak
// mutation goes through it.
type Session struct {
	identity  string
	cfg       SessionConfig
	gateway   ledger.Gateway
	policy    *ReconciliationPolicy
	evaluator Evaluator
	prompts   PromptSource
	notifier  Notifier
	history   *HistoryService

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      domain.SessionState
	balance    int64
	streak     int
	roundID    string
	prompt     *domain.Prompt
	deadline   *time.Time
	draft      string
	lastResult *domain.RoundResult
	lastErr    string
	generation uint64
	timer      *time.Timer
	betDone    chan struct{} // closed when the in-flight PlaceBet settles
	resetting  bool
	closed     bool
}

// NewSession creates an idle session (terminated if the balance cannot cover a stake)
func NewSession(identity string, balance int64, streak int, deps SessionDeps, cfg SessionConfig) *Session {
	def := DefaultSessionConfig()
	if cfg.StakeCost <= 0 {
		cfg.StakeCost = def.StakeCost
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = def.RoundDuration
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if balance < 0 {
		balance = 0
	}
	if streak < 0 {
		streak = 0
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Policy == nil {
		deps.Policy = NewReconciliationPolicy(deps.Gateway, DefaultReconcileAttempts, DefaultReconcileDelay)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		identity:  identity,
		cfg:       cfg,
		gateway:   deps.Gateway,
		policy:    deps.Policy,
		evaluator: deps.Evaluator,
		prompts:   deps.Prompts,
		notifier:  deps.Notifier,
		history:   deps.History,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.StateIdle,
		balance:   balance,
		streak:    streak,
	}
	if balance < cfg.StakeCost {
		s.state = domain.StateTerminated
	}
	return s
}

// Identity returns the player this session belongs to
func (s *Session) Identity() string {
	return s.identity
}

// StartRound certifies a clean ledger, places the stake and arms the countdown
func (s *Session) StartRound(ctx context.Context) (RoundStart, error) {
	s.mu.Lock()
	if err := s.canStartLocked(); err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if errors.Is(err, ErrInsufficientFunds) {
			s.notify(SessionEvent{Type: EventStateChanged, Snapshot: snap, Error: err.Error()})
		}
		return RoundStart{}, err
	}

	s.generation++
	gen := s.generation
	roundID := uuid.NewString()
	s.state = domain.StateBetPending
	s.roundID = roundID
	s.lastResult = nil
	s.lastErr = ""
	done := make(chan struct{})
	s.betDone = done
	s.mu.Unlock()
	defer s.releaseBet(done)

	log := logger.ForRound(s.identity, roundID)

	if err := s.placeBet(ctx); err != nil {
		log.Warn("bet rejected", "error", err)
		s.abortBet(gen, err)
		return RoundStart{}, err
	}

	prompt, err := s.prompts.Next(ctx)
	if err != nil {
		log.Error("prompt source failed, using fallback prompt", "error", err)
		prompt = fallbackPrompt
	}

	s.mu.Lock()
	if s.generation != gen || s.state != domain.StateBetPending {
		// the ledger took the stake either way
		s.balance = max(0, s.balance-s.cfg.StakeCost)
		s.mu.Unlock()
		log.Warn("bet confirmed for an abandoned round")
		return RoundStart{}, ErrRoundAbandoned
	}
	s.balance -= s.cfg.StakeCost
	if s.balance < 0 {
		s.balance = 0
	}
	deadline := s.now().Add(s.cfg.RoundDuration)
	s.state = domain.StateQuestionActive
	s.prompt = &prompt
	s.deadline = &deadline
	s.draft = ""
	s.timer = s.afterFunc(s.cfg.RoundDuration, func() { s.expire(gen) })
	start := RoundStart{
		RoundID:         roundID,
		Prompt:          prompt,
		Deadline:        deadline,
		DeadlineSeconds: int(s.cfg.RoundDuration / time.Second),
		Balance:         s.balance,
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Info("round started", "prompt_id", prompt.ID, "balance", start.Balance)
	s.history.RecordStake(s.ctx, s.identity, roundID, s.cfg.StakeCost)
	s.notify(SessionEvent{Type: EventRoundStarted, Snapshot: snap})
	return start, nil
}

func (s *Session) canStartLocked() error {
	switch {
	case s.closed:
		return ErrSessionTerminated
	case s.resetting:
		return fmt.Errorf("%w: reset in progress", ErrInvalidStateTransition)
	case s.state == domain.StateTerminated && s.balance < s.cfg.StakeCost:
		return ErrInsufficientFunds
	case s.state == domain.StateTerminated:
		return ErrSessionTerminated
	case s.state != domain.StateIdle:
		return fmt.Errorf("%w: round already in %s", ErrInvalidStateTransition, s.state)
	case s.balance < s.cfg.StakeCost:
		s.state = domain.StateTerminated
		return ErrInsufficientFunds
	}
	return nil
}

// placeBet runs reconciliation and places the stake. A bet rejected with
// AlreadyHasBet was never taken, so it is attempted exactly once more.
func (s *Session) placeBet(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if _, err := s.policy.EnsureClean(ctx, s.identity); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		_, err := s.gateway.PlaceBet(callCtx, s.identity, s.cfg.StakeCost)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, ledger.ErrAlreadyHasBet) {
			if attempt == 1 {
				logger.ForIdentity(s.identity).Warn("ledger still holds a bet, reconciling again")
				continue
			}
			return fmt.Errorf("%w: %v", ErrCannotClear, err)
		}
		return translateLedgerError(err)
	}
}

func (s *Session) releaseBet(done chan struct{}) {
	s.mu.Lock()
	if s.betDone == done {
		s.betDone = nil
	}
	s.mu.Unlock()
	close(done)
}

func (s *Session) abortBet(gen uint64, err error) {
	s.mu.Lock()
	if s.generation != gen || s.state != domain.StateBetPending {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateIdle
	s.roundID = ""
	s.lastErr = err.Error()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(SessionEvent{Type: EventRoundError, Snapshot: snap, Error: err.Error()})
}

// UpdateDraft stores the text typed so far; it is submitted if the countdown runs out
func (s *Session) UpdateDraft(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateQuestionActive {
		return fmt.Errorf("%w: no active question", ErrInvalidStateTransition)
	}
	s.draft = text
	return nil
}

// SubmitAnswer sends the answer to the ledger, gets a verdict and settles the round
func (s *Session) SubmitAnswer(ctx context.Context, text string) (domain.RoundResult, error) {
	s.mu.Lock()
	if s.state != domain.StateQuestionActive {
		state := s.state
		s.mu.Unlock()
		return domain.RoundResult{}, fmt.Errorf("%w: cannot answer in %s", ErrInvalidStateTransition, state)
	}
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return domain.RoundResult{}, ErrEmptyAnswer
	}

	s.stopTimerLocked()
	s.state = domain.StateAnswerSubmitting
	s.draft = text
	gen := s.generation
	prompt := *s.prompt
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(SessionEvent{Type: EventStateChanged, Snapshot: snap})
	return s.resolve(ctx, gen, prompt, text)
}

// resolve runs ANSWER_SUBMITTING -> EVALUATING -> RESULT for a non-empty answer
func (s *Session) resolve(ctx context.Context, gen uint64, prompt domain.Prompt, answer string) (domain.RoundResult, error) {
	log := logger.ForIdentity(s.identity)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	_, err := s.gateway.SubmitAnswer(callCtx, s.identity, ledger.NewAnswerPayload(answer))
	cancel()
	if err != nil {
		rejected := fmt.Errorf("%w: %v", ErrAnswerRejected, err)

		s.mu.Lock()
		if s.generation != gen || s.state != domain.StateAnswerSubmitting {
			s.mu.Unlock()
			return domain.RoundResult{}, ErrRoundAbandoned
		}
		roundID := s.roundID
		s.clearRoundLocked()
		s.state = domain.StateIdle
		s.lastErr = rejected.Error()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		log.Error("answer rejected after confirmed bet", "round_id", roundID, "error", err)
		roundsTotal.WithLabelValues("rejected").Inc()
		s.notify(SessionEvent{Type: EventRoundError, Snapshot: snap, Error: rejected.Error()})
		return domain.RoundResult{}, rejected
	}

	s.mu.Lock()
	if s.generation != gen || s.state != domain.StateAnswerSubmitting {
		s.mu.Unlock()
		return domain.RoundResult{}, ErrRoundAbandoned
	}
	s.state = domain.StateEvaluating
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(SessionEvent{Type: EventStateChanged, Snapshot: snap})

	verdict := s.evaluator.Evaluate(ctx, prompt.Text, answer)

	s.mu.Lock()
	if s.generation != gen || s.state != domain.StateEvaluating {
		s.mu.Unlock()
		return domain.RoundResult{}, ErrRoundAbandoned
	}
	winAmount, streak := game.Payout(verdict.IsWinner, s.streak)
	s.balance += winAmount
	s.streak = streak
	result := domain.RoundResult{
		RoundID:   s.roundID,
		IsWinner:  verdict.IsWinner,
		WinAmount: winAmount,
		Streak:    streak,
		Balance:   s.balance,
		Answer:    answer,
		Verdict:   verdict,
	}
	s.finishLocked(&result)
	snap = s.snapshotLocked()
	s.mu.Unlock()

	log.Info("round resolved",
		"round_id", result.RoundID,
		"winner", result.IsWinner,
		"score", verdict.Score,
		"fallback", verdict.UsedFallback,
		"win_amount", winAmount,
		"streak", streak,
	)

	outcome := domain.RoundOutcomeLose
	if result.IsWinner {
		outcome = domain.RoundOutcomeWin
	}
	s.settle(result.RoundID, winAmount, streak)
	s.record(prompt, &result, outcome)
	s.notify(SessionEvent{Type: EventRoundResult, Snapshot: snap, Result: &result})
	return result, nil
}

// expire is the countdown callback. It re-checks state and generation
// under the lock, so a cancelled or superseded timer does nothing.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if s.generation != gen || s.state != domain.StateQuestionActive {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	draft := s.draft
	prompt := *s.prompt
	s.state = domain.StateAnswerSubmitting
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(SessionEvent{Type: EventStateChanged, Snapshot: snap})

	if strings.TrimSpace(draft) != "" {
		if _, err := s.resolve(s.ctx, gen, prompt, draft); err != nil {
			logger.ForIdentity(s.identity).Warn("timed out draft not resolved", "error", err)
		}
		return
	}

	// best effort: unblock the ledger for the next round, failures are
	// left to reconciliation
	callCtx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	_, err := s.gateway.SubmitAnswer(callCtx, s.identity, ledger.NewSentinelPayload(ledger.KindTimeout, s.now()))
	cancel()
	if err != nil {
		logger.ForIdentity(s.identity).Warn("timeout sentinel not accepted", "error", err)
	}

	s.mu.Lock()
	if s.generation != gen || s.state != domain.StateAnswerSubmitting {
		s.mu.Unlock()
		return
	}
	s.streak = 0
	result := domain.RoundResult{
		RoundID:  s.roundID,
		Streak:   0,
		Balance:  s.balance,
		TimedOut: true,
		Verdict: domain.Verdict{
			Diagnostics: map[string]any{"reason": "timeout"},
		},
	}
	s.finishLocked(&result)
	snap = s.snapshotLocked()
	s.mu.Unlock()

	logger.ForIdentity(s.identity).Info("round timed out", "round_id", result.RoundID)
	s.record(prompt, &result, domain.RoundOutcomeTimeout)
	s.notify(SessionEvent{Type: EventRoundResult, Snapshot: snap, Result: &result})
}

// Acknowledge leaves RESULT; the session terminates when the balance cannot cover another stake
func (s *Session) Acknowledge() (domain.SessionState, error) {
	s.mu.Lock()
	if s.state != domain.StateResult {
		state := s.state
		s.mu.Unlock()
		return state, fmt.Errorf("%w: nothing to acknowledge in %s", ErrInvalidStateTransition, state)
	}
	s.state = domain.StateIdle
	if s.balance < s.cfg.StakeCost {
		s.state = domain.StateTerminated
	}
	state := s.state
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(SessionEvent{Type: EventStateChanged, Snapshot: snap})
	return state, nil
}

// ForceReset abandons whatever round is in flight, reconciles the ledger and
// reloads the balance from it. Usable from every state; a bet placement in
// flight is waited for so its debit is not lost.
func (s *Session) ForceReset(ctx context.Context) (ReconcileReport, error) {
	s.mu.Lock()
	for s.betDone != nil && !s.closed {
		done := s.betDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ReconcileReport{}, ctx.Err()
		}
		s.mu.Lock()
	}
	if s.closed {
		s.mu.Unlock()
		return ReconcileReport{}, ErrSessionTerminated
	}
	if s.resetting {
		s.mu.Unlock()
		return ReconcileReport{}, fmt.Errorf("%w: reset in progress", ErrInvalidStateTransition)
	}
	s.resetting = true
	s.generation++
	s.stopTimerLocked()
	s.clearRoundLocked()
	s.state = domain.StateIdle
	s.mu.Unlock()

	log := logger.ForIdentity(s.identity)
	report, err := s.policy.EnsureClean(ctx, s.identity)
	if err != nil {
		log.Warn("reset could not clear ledger", "error", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	balance, balErr := s.gateway.GetBalance(callCtx, s.identity)
	cancel()
	if balErr != nil {
		log.Warn("balance refresh failed", "error", balErr)
	}

	s.mu.Lock()
	s.resetting = false
	if balErr == nil && balance >= 0 {
		s.balance = balance
	}
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	if s.balance < s.cfg.StakeCost {
		s.state = domain.StateTerminated
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Info("session reset", "state", snap.State, "balance", snap.Balance, "actions", len(report.Actions))
	s.history.SavePlayer(s.ctx, s.identity, snap.Balance, snap.Streak)
	s.notify(SessionEvent{Type: EventSessionReset, Snapshot: snap, Error: snap.LastError})
	return report, err
}

// Balance returns the session-owned balance
func (s *Session) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// State returns the current state
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the countdown and drops any in-flight round
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.stopTimerLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.cancel()
	s.notify(SessionEvent{Type: EventSessionClosed, Snapshot: snap})
}

func (s *Session) finishLocked(result *domain.RoundResult) {
	s.lastResult = result
	s.state = domain.StateResult
	s.prompt = nil
	s.deadline = nil
	s.draft = ""
}

func (s *Session) clearRoundLocked() {
	s.roundID = ""
	s.prompt = nil
	s.deadline = nil
	s.draft = ""
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		Identity:  s.identity,
		State:     s.state,
		Balance:   s.balance,
		Streak:    s.streak,
		StakeCost: s.cfg.StakeCost,
		RoundID:   s.roundID,
		LastError: s.lastErr,
	}
	if s.prompt != nil {
		p := *s.prompt
		snap.ActivePrompt = &p
	}
	if s.deadline != nil {
		d := *s.deadline
		snap.Deadline = &d
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.LastResult = &r
	}
	return snap
}

// settle credits winnings back to ledgers that support it
func (s *Session) settle(roundID string, winAmount int64, streak int) {
	if winAmount <= 0 {
		return
	}
	payoutsTotal.Add(float64(winAmount))

	var txHash string
	if settler, ok := s.gateway.(ledger.Settler); ok {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
		receipt, err := settler.Payout(ctx, s.identity, winAmount)
		cancel()
		if err != nil {
			logger.ForIdentity(s.identity).Warn("payout settlement failed", "round_id", roundID, "amount", winAmount, "error", err)
		} else {
			txHash = receipt.TxHash
		}
	}
	s.history.RecordPayout(s.ctx, s.identity, roundID, winAmount, streak, txHash)
}

func (s *Session) record(prompt domain.Prompt, result *domain.RoundResult, outcome domain.RoundOutcome) {
	roundsTotal.WithLabelValues(string(outcome)).Inc()
	s.history.RecordRound(s.ctx, &domain.Round{
		RoundID:      result.RoundID,
		Identity:     s.identity,
		PromptID:     prompt.ID,
		PromptText:   prompt.Text,
		Answer:       result.Answer,
		Outcome:      outcome,
		Stake:        s.cfg.StakeCost,
		WinAmount:    result.WinAmount,
		Streak:       result.Streak,
		Score:        result.Verdict.Score,
		UsedFallback: result.Verdict.UsedFallback,
		Diagnostics:  result.Verdict.Diagnostics,
	}, result.Balance)
}

func (s *Session) notify(event SessionEvent) {
	s.notifier.Notify(s.identity, event)
}

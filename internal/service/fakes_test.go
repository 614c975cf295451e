package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"
)

func init() {
	logger.InitWithWriter(io.Discard, "error", false)
}

// fakeLedger is an in-memory stake ledger with knobs for the failure modes
// of the real one
type fakeLedger struct {
	mu sync.Mutex

	balance int64
	status  domain.BetStatus

	statusCalls int
	betCalls    int
	submits     []ledger.AnswerPayload
	payouts     []int64

	statusErrs []error // consumed one per status query
	betErrs    []error // consumed one per PlaceBet
	submitErr  func(p ledger.AnswerPayload) error
	balanceErr error

	// stale queries still reported after a sentinel clears the bet
	lag int
	// sentinels are accepted but never clear anything
	stuck bool
}

func (f *fakeLedger) GetBalance(ctx context.Context, identity string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeLedger) GetBetStatus(ctx context.Context, identity string) (domain.BetStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return domain.BetStatus{}, err
		}
	}
	if f.lag > 0 && !f.status.HasUnresolvedBet {
		f.lag--
		return domain.BetStatus{HasUnresolvedBet: true}, nil
	}
	return f.status, nil
}

func (f *fakeLedger) PlaceBet(ctx context.Context, identity string, amount int64) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.betCalls++
	if len(f.betErrs) > 0 {
		err := f.betErrs[0]
		f.betErrs = f.betErrs[1:]
		if err != nil {
			return ledger.Receipt{}, err
		}
	}
	if f.status.HasUnresolvedBet {
		return ledger.Receipt{}, &ledger.Error{Op: "place_bet", Reason: ledger.ReasonAlreadyHasBet}
	}
	if f.balance < amount {
		return ledger.Receipt{}, &ledger.Error{Op: "place_bet", Reason: ledger.ReasonInsufficientFunds}
	}
	f.balance -= amount
	f.status = domain.BetStatus{HasUnresolvedBet: true}
	return ledger.Receipt{TxHash: "bet"}, nil
}

func (f *fakeLedger) SubmitAnswer(ctx context.Context, identity string, p ledger.AnswerPayload) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, p)
	if f.submitErr != nil {
		if err := f.submitErr(p); err != nil {
			return ledger.Receipt{}, err
		}
	}
	if !f.status.HasUnresolvedBet {
		return ledger.Receipt{}, &ledger.Error{Op: "submit_answer", Reason: ledger.ReasonNoPendingBet}
	}
	if f.stuck && p.IsSentinel() {
		return ledger.Receipt{TxHash: "ignored"}, nil
	}
	f.status = domain.BetStatus{}
	return ledger.Receipt{TxHash: "answer"}, nil
}

func (f *fakeLedger) Payout(ctx context.Context, identity string, amount int64) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payouts = append(f.payouts, amount)
	f.balance += amount
	return ledger.Receipt{TxHash: "payout"}, nil
}

func (f *fakeLedger) submitted() []ledger.AnswerPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.AnswerPayload(nil), f.submits...)
}

func (f *fakeLedger) counts() (status, bets, submits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.betCalls, len(f.submits)
}

func (f *fakeLedger) resetCounts() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls, f.betCalls, f.submits = 0, 0, nil
}

var errTransport = errors.New("connection refused")

// fakeEvaluator returns a fixed verdict and counts calls
type fakeEvaluator struct {
	mu      sync.Mutex
	verdict domain.Verdict
	calls   int
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, prompt, answer string) domain.Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.verdict
}

func (e *fakeEvaluator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fixedPrompts struct{}

func (fixedPrompts) Next(ctx context.Context) (domain.Prompt, error) {
	return domain.Prompt{ID: "p1", Text: "What's your favorite book?"}, nil
}

// recordingNotifier keeps every event for assertions
type recordingNotifier struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (n *recordingNotifier) Notify(identity string, event SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []SessionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SessionEvent(nil), n.events...)
}

// memoryHistory is a HistoryStore kept in maps
type memoryHistory struct {
	mu      sync.Mutex
	rounds  []*domain.Round
	players map[string]*domain.Player
	txs     []*domain.Transaction
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{players: make(map[string]*domain.Player)}
}

func (h *memoryHistory) SaveRound(ctx context.Context, r *domain.Round) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rounds = append(h.rounds, r)
	return nil
}

func (h *memoryHistory) ListRounds(ctx context.Context, identity string, limit int) ([]*domain.Round, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*domain.Round
	for i := len(h.rounds) - 1; i >= 0 && len(out) < limit; i-- {
		if h.rounds[i].Identity == identity {
			out = append(out, h.rounds[i])
		}
	}
	return out, nil
}

func (h *memoryHistory) GetPlayer(ctx context.Context, identity string) (*domain.Player, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[identity]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (h *memoryHistory) SavePlayer(ctx context.Context, p *domain.Player) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := *p
	h.players[p.Identity] = &cp
	return nil
}

func (h *memoryHistory) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.txs = append(h.txs, tx)
	return nil
}

func (h *memoryHistory) TopPlayers(ctx context.Context, limit int) ([]*domain.Player, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*domain.Player, 0, len(h.players))
	for _, p := range h.players {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Streak > out[j].Streak })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *memoryHistory) Stats(ctx context.Context, identity string, since time.Time) (*domain.PlayerStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := &domain.PlayerStats{Identity: identity, Since: since}
	for _, r := range h.rounds {
		if r.Identity != identity {
			continue
		}
		st.Rounds++
		st.TotalStake += r.Stake
		st.TotalWon += r.WinAmount
		switch r.Outcome {
		case domain.RoundOutcomeWin:
			st.Wins++
		case domain.RoundOutcomeTimeout:
			st.Timeouts++
		}
	}
	return st, nil
}

func (h *memoryHistory) ListTransactions(ctx context.Context, identity string, limit int) ([]*domain.Transaction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*domain.Transaction
	for i := len(h.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if h.txs[i].Identity == identity {
			out = append(out, h.txs[i])
		}
	}
	return out, nil
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func testPolicy(gw ledger.Gateway) *ReconciliationPolicy {
	p := NewReconciliationPolicy(gw, 3, time.Millisecond)
	p.sleep = noSleep
	return p
}

// manualTimer captures the countdown callback so tests fire it by hand
type manualTimer struct {
	mu   sync.Mutex
	fire func()
	d    time.Duration
}

func (m *manualTimer) afterFunc(d time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fire = f
	m.d = d
	return time.AfterFunc(time.Hour, func() {})
}

func (m *manualTimer) trigger() {
	m.mu.Lock()
	f := m.fire
	m.mu.Unlock()
	if f != nil {
		f()
	}
}

type harness struct {
	ledger   *fakeLedger
	eval     *fakeEvaluator
	notifier *recordingNotifier
	history  *memoryHistory
	timer    *manualTimer
	session  *Session
}

func newHarness(balance int64, winner bool) *harness {
	h := &harness{
		ledger:   &fakeLedger{balance: balance},
		eval:     &fakeEvaluator{verdict: domain.Verdict{IsWinner: winner, Score: 0.2}},
		notifier: &recordingNotifier{},
		history:  newMemoryHistory(),
		timer:    &manualTimer{},
	}
	if winner {
		h.eval.verdict.Score = 0.8
	}
	h.session = NewSession("0xplayer", balance, 0, SessionDeps{
		Gateway:   h.ledger,
		Policy:    testPolicy(h.ledger),
		Evaluator: h.eval,
		Prompts:   fixedPrompts{},
		Notifier:  h.notifier,
		History:   NewHistoryService(h.history),
	}, SessionConfig{StakeCost: 1, RoundDuration: 15 * time.Second, CallTimeout: time.Second})
	h.session.afterFunc = h.timer.afterFunc
	return h
}

// blockingBets holds PlaceBet until release is closed
type blockingBets struct {
	*fakeLedger
	entered chan struct{}
	release chan struct{}
}

func newBlockingBets(fl *fakeLedger) *blockingBets {
	return &blockingBets{fakeLedger: fl, entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingBets) PlaceBet(ctx context.Context, identity string, amount int64) (ledger.Receipt, error) {
	close(b.entered)
	<-b.release
	return b.fakeLedger.PlaceBet(ctx, identity, amount)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"
)

// defaults for the reconciliation policy
const (
	DefaultReconcileAttempts = 3
	DefaultReconcileDelay    = time.Second
)

// ActionOutcome - result of one recovery strategy
type ActionOutcome string

const (
	OutcomeCleared  ActionOutcome = "cleared"
	OutcomeReleased ActionOutcome = "released"
	OutcomeIgnored  ActionOutcome = "ignored"
	OutcomeFailed   ActionOutcome = "failed"
)

// ActionResult records what a strategy did
type ActionResult struct {
	Strategy string             `json:"strategy"`
	Payload  ledger.PayloadKind `json:"payload"`
	Attempts int                `json:"attempts"`
	Outcome  ActionOutcome      `json:"outcome"`
	Error    string             `json:"error,omitempty"`
}

// ReconcileReport is returned by EnsureClean whether or not it succeeded
type ReconcileReport struct {
	Initial       domain.BetStatus `json:"initial"`
	Final         domain.BetStatus `json:"final"`
	StatusQueries int              `json:"status_queries"`
	Actions       []ActionResult   `json:"actions,omitempty"`
}

// Mutated reports whether any recovery submission was made
func (r ReconcileReport) Mutated() bool {
	return len(r.Actions) > 0
}

// recoveryStrategy is one entry of the ordered recovery list. A blocking
// strategy that fails stops the round from starting.
type recoveryStrategy struct {
	name     string
	payload  ledger.PayloadKind
	blocking bool
	applies  func(domain.BetStatus) bool
	run      func(ctx context.Context, p *ReconciliationPolicy, identity string, report *ReconcileReport) ActionResult
}

// ReconciliationPolicy certifies that the ledger will accept a new bet and
// drives recovery when an earlier round left state behind.
type ReconciliationPolicy struct {
	gateway    ledger.Gateway
	attempts   int
	delay      time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	strategies []recoveryStrategy
}

// NewReconciliationPolicy creates a policy; non-positive values fall back to defaults
func NewReconciliationPolicy(gateway ledger.Gateway, attempts int, delay time.Duration) *ReconciliationPolicy {
	if attempts <= 0 {
		attempts = DefaultReconcileAttempts
	}
	if delay < 0 {
		delay = DefaultReconcileDelay
	}
	return &ReconciliationPolicy{
		gateway:  gateway,
		attempts: attempts,
		delay:    delay,
		now:      time.Now,
		sleep:    sleepContext,
		strategies: []recoveryStrategy{
			{
				name:     "clear_pending",
				payload:  ledger.KindClearPending,
				blocking: true,
				applies:  domain.BetStatus.PendingBetBlocksNewRound,
				run:      clearPending,
			},
			{
				name:     "release_submitted",
				payload:  ledger.KindReleaseSubmitted,
				blocking: false,
				applies:  domain.BetStatus.AwaitingResolution,
				run:      releaseSubmitted,
			},
		},
	}
}

// EnsureClean queries the ledger and runs every applicable strategy in order.
// A clean ledger costs exactly one status query.
func (p *ReconciliationPolicy) EnsureClean(ctx context.Context, identity string) (ReconcileReport, error) {
	var report ReconcileReport
	log := logger.ForIdentity(identity)

	status, err := p.queryStatus(ctx, identity, &report)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	}
	report.Initial = status
	report.Final = status

	for _, s := range p.strategies {
		if !s.applies(report.Final) {
			continue
		}

		log.Warn("ledger out of sync, running recovery", "strategy", s.name, "status", report.Final)
		res := s.run(ctx, p, identity, &report)
		report.Actions = append(report.Actions, res)
		reconcileActions.WithLabelValues(s.name, string(res.Outcome)).Inc()

		if res.Outcome == OutcomeFailed && s.blocking {
			log.Error("recovery failed", "strategy", s.name, "attempts", res.Attempts, "error", res.Error)
			return report, ErrCannotClear
		}
		log.Info("recovery finished", "strategy", s.name, "outcome", res.Outcome, "attempts", res.Attempts)
	}

	return report, nil
}

// Diagnose explains a status snapshot the way an operator would read it
func Diagnose(status domain.BetStatus) string {
	switch {
	case status.Clean():
		return "no pending bet: a new round can start"
	case status.PendingBetBlocksNewRound():
		return "bet placed but never answered: reset submits a clear_pending sentinel"
	default:
		return "answer submitted, waiting for resolution: reset submits a release_submitted sentinel"
	}
}

// queryStatus is a read, so it is retried within the policy bound
func (p *ReconciliationPolicy) queryStatus(ctx context.Context, identity string, report *ReconcileReport) (domain.BetStatus, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.delay); err != nil {
				return domain.BetStatus{}, err
			}
		}
		report.StatusQueries++
		status, err := p.gateway.GetBetStatus(ctx, identity)
		if err == nil {
			return status, nil
		}
		lastErr = err
	}
	return domain.BetStatus{}, lastErr
}

// clearPending answers a stale bet with a sentinel, then polls until the
// ledger catches up or the attempt budget runs out
func clearPending(ctx context.Context, p *ReconciliationPolicy, identity string, report *ReconcileReport) ActionResult {
	res := ActionResult{Strategy: "clear_pending", Payload: ledger.KindClearPending}
	submitted := false

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.delay); err != nil {
				res.Error = err.Error()
				break
			}
		}

		if !submitted {
			res.Attempts++
			_, err := p.gateway.SubmitAnswer(ctx, identity, ledger.NewSentinelPayload(ledger.KindClearPending, p.now()))
			if err != nil && !errors.Is(err, ledger.ErrNoPendingBet) {
				res.Error = err.Error()
				continue
			}
			submitted = true
			res.Error = ""
		}

		report.StatusQueries++
		status, err := p.gateway.GetBetStatus(ctx, identity)
		if err != nil {
			res.Error = err.Error()
			continue
		}
		report.Final = status
		if !status.PendingBetBlocksNewRound() {
			res.Outcome = OutcomeCleared
			return res
		}
	}

	status, err := p.queryStatus(ctx, identity, report)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		return res
	}
	report.Final = status
	if status.PendingBetBlocksNewRound() {
		res.Outcome = OutcomeFailed
		if res.Error == "" {
			res.Error = "bet still pending after recovery"
		}
		return res
	}
	res.Outcome = OutcomeCleared
	return res
}

// releaseSubmitted pokes an answered-but-unresolved bet with a second
// submission. Whatever happens, the round is allowed to go ahead.
func releaseSubmitted(ctx context.Context, p *ReconciliationPolicy, identity string, report *ReconcileReport) ActionResult {
	res := ActionResult{Strategy: "release_submitted", Payload: ledger.KindReleaseSubmitted, Attempts: 1}

	_, err := p.gateway.SubmitAnswer(ctx, identity, ledger.NewSentinelPayload(ledger.KindReleaseSubmitted, p.now()))
	switch {
	case err == nil:
		res.Outcome = OutcomeReleased
		report.Final = domain.BetStatus{}
	case errors.Is(err, ledger.ErrNoPendingBet):
		res.Outcome = OutcomeReleased
		report.Final = domain.BetStatus{}
	default:
		res.Outcome = OutcomeIgnored
		res.Error = err.Error()
	}
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package service

import (
	"context"
	"errors"
	"testing"

	"arebasic/internal/domain"
	"arebasic/internal/ledger"
)

func TestEnsureCleanIdempotentOnCleanLedger(t *testing.T) {
	fl := &fakeLedger{balance: 10}
	p := testPolicy(fl)
	ctx := context.Background()

	if _, err := p.EnsureClean(ctx, "0xa"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	fl.resetCounts()

	report, err := p.EnsureClean(ctx, "0xa")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	status, bets, submits := fl.counts()
	if status != 1 || bets != 0 || submits != 0 {
		t.Fatalf("second call did status=%d bets=%d submits=%d, want 1/0/0", status, bets, submits)
	}
	if report.Mutated() || report.StatusQueries != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestEnsureCleanClearsPendingBet(t *testing.T) {
	fl := &fakeLedger{balance: 10, status: domain.BetStatus{HasUnresolvedBet: true}}
	p := testPolicy(fl)

	report, err := p.EnsureClean(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("EnsureClean: %v", err)
	}

	subs := fl.submitted()
	if len(subs) != 1 || subs[0].Kind != ledger.KindClearPending {
		t.Fatalf("submissions = %+v, want one clear_pending sentinel", subs)
	}
	if len(report.Actions) != 1 || report.Actions[0].Outcome != OutcomeCleared {
		t.Fatalf("actions = %+v", report.Actions)
	}
	if report.Final.PendingBetBlocksNewRound() {
		t.Fatalf("final status still blocked: %+v", report.Final)
	}
}

func TestEnsureCleanAbsorbsLag(t *testing.T) {
	fl := &fakeLedger{balance: 10, status: domain.BetStatus{HasUnresolvedBet: true}, lag: 2}
	p := testPolicy(fl)

	report, err := p.EnsureClean(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("EnsureClean: %v", err)
	}
	if got := len(fl.submitted()); got != 1 {
		t.Fatalf("sentinel submitted %d times, want 1", got)
	}
	if report.StatusQueries != 4 {
		t.Fatalf("status queries = %d, want 4", report.StatusQueries)
	}
}

func TestEnsureCleanGivesUp(t *testing.T) {
	tests := []struct {
		name        string
		ledger      *fakeLedger
		wantSubmits int
	}{
		{
			name:        "sentinel accepted but bet stays",
			ledger:      &fakeLedger{status: domain.BetStatus{HasUnresolvedBet: true}, stuck: true},
			wantSubmits: 1,
		},
		{
			name: "sentinel never accepted",
			ledger: &fakeLedger{
				status: domain.BetStatus{HasUnresolvedBet: true},
				submitErr: func(ledger.AnswerPayload) error {
					return &ledger.Error{Op: "submit_answer", Reason: ledger.ReasonUnreachable}
				},
			},
			wantSubmits: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := testPolicy(tt.ledger).EnsureClean(context.Background(), "0xa")
			if !errors.Is(err, ErrCannotClear) {
				t.Fatalf("err = %v, want ErrCannotClear", err)
			}
			if got := len(tt.ledger.submitted()); got != tt.wantSubmits {
				t.Fatalf("submits = %d, want %d", got, tt.wantSubmits)
			}
			if len(report.Actions) != 1 || report.Actions[0].Outcome != OutcomeFailed {
				t.Fatalf("actions = %+v", report.Actions)
			}
		})
	}
}

func TestEnsureCleanReleasesSubmittedBet(t *testing.T) {
	fl := &fakeLedger{status: domain.BetStatus{HasUnresolvedBet: true, HasSubmittedAnswer: true}}
	report, err := testPolicy(fl).EnsureClean(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("EnsureClean: %v", err)
	}
	subs := fl.submitted()
	if len(subs) != 1 || subs[0].Kind != ledger.KindReleaseSubmitted {
		t.Fatalf("submissions = %+v, want one release_submitted sentinel", subs)
	}
	if report.Actions[0].Outcome != OutcomeReleased {
		t.Fatalf("outcome = %s", report.Actions[0].Outcome)
	}
}

func TestEnsureCleanReleaseFailureDoesNotBlock(t *testing.T) {
	fl := &fakeLedger{
		status: domain.BetStatus{HasUnresolvedBet: true, HasSubmittedAnswer: true},
		submitErr: func(ledger.AnswerPayload) error {
			return &ledger.Error{Op: "submit_answer", Reason: ledger.ReasonUnreachable}
		},
	}
	report, err := testPolicy(fl).EnsureClean(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("release failure must not block: %v", err)
	}
	if report.Actions[0].Outcome != OutcomeIgnored || report.Actions[0].Error == "" {
		t.Fatalf("action = %+v", report.Actions[0])
	}
}

func TestEnsureCleanStatusRetries(t *testing.T) {
	unreachable := &ledger.Error{Op: "bet_status", Reason: ledger.ReasonUnreachable}

	fl := &fakeLedger{statusErrs: []error{unreachable, nil}}
	report, err := testPolicy(fl).EnsureClean(context.Background(), "0xa")
	if err != nil {
		t.Fatalf("one failed query should be retried: %v", err)
	}
	if report.StatusQueries != 2 {
		t.Fatalf("status queries = %d, want 2", report.StatusQueries)
	}

	fl = &fakeLedger{statusErrs: []error{unreachable, unreachable, unreachable}}
	report, err = testPolicy(fl).EnsureClean(context.Background(), "0xa")
	if !errors.Is(err, ErrLedgerUnreachable) {
		t.Fatalf("err = %v, want ErrLedgerUnreachable", err)
	}
	if report.StatusQueries != 3 {
		t.Fatalf("status queries = %d, want 3", report.StatusQueries)
	}
	if _, _, submits := fl.counts(); submits != 0 {
		t.Fatalf("no mutating call expected, got %d", submits)
	}
}

func TestDiagnose(t *testing.T) {
	seen := map[string]bool{}
	for _, st := range []domain.BetStatus{
		{},
		{HasUnresolvedBet: true},
		{HasUnresolvedBet: true, HasSubmittedAnswer: true},
	} {
		msg := Diagnose(st)
		if msg == "" || seen[msg] {
			t.Fatalf("Diagnose(%+v) = %q", st, msg)
		}
		seen[msg] = true
	}
}

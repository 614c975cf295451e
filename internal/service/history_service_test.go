package service

import (
	"context"
	"testing"
	"time"

	"arebasic/internal/domain"
)

func TestHistoryServiceDisabled(t *testing.T) {
	var s *HistoryService
	ctx := context.Background()

	s.RecordRound(ctx, &domain.Round{Identity: "0xa"}, 5)
	s.RecordStake(ctx, "0xa", "r1", 1)
	if p := s.LoadPlayer(ctx, "0xa"); p != nil {
		t.Fatalf("LoadPlayer = %+v, want nil", p)
	}
	top, err := s.Leaderboard(ctx, 10)
	if err != nil || len(top) != 0 {
		t.Fatalf("Leaderboard = %v, %v", top, err)
	}
	st, err := s.Stats(ctx, "0xa", time.Time{})
	if err != nil || st.Rounds != 0 || st.Identity != "0xa" {
		t.Fatalf("Stats = %+v, %v", st, err)
	}
}

func TestHistoryAfterRounds(t *testing.T) {
	h := newHarness(10, true)
	ctx := context.Background()

	if _, err := h.session.StartRound(ctx); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if _, err := h.session.SubmitAnswer(ctx, "an answer nobody expects"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := h.session.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if _, err := h.session.StartRound(ctx); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	h.timer.trigger()

	history := NewHistoryService(h.history)
	st, err := history.Stats(ctx, "0xplayer", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Rounds != 2 || st.Wins != 1 || st.Timeouts != 1 || st.TotalWon != 10 || st.TotalStake != 2 {
		t.Fatalf("stats = %+v", st)
	}

	journal, err := history.Journal(ctx, "0xplayer", 0)
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	// newest first: stake of round 2, payout and stake of round 1
	if len(journal) != 3 || journal[0].Type != domain.TxTypeStake || journal[1].Type != domain.TxTypePayout {
		t.Fatalf("journal = %+v", journal)
	}

	top, err := history.Leaderboard(ctx, 5)
	if err != nil || len(top) != 1 || top[0].Streak != 0 {
		t.Fatalf("leaderboard = %+v, %v", top, err)
	}
}

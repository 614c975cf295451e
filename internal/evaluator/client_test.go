package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEvaluateWinner(t *testing.T) {
	var got evaluateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"final_score":0.81,"ai_detection_score":0.1,"coherence_score":0.9,"explanation":"quirky"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	v := c.Evaluate(context.Background(), "What's your favorite food?", "Cold leftover dumplings at 3am")

	if !v.IsWinner || v.UsedFallback {
		t.Fatalf("unexpected verdict %+v", v)
	}
	if v.Score != 0.81 {
		t.Fatalf("score = %v; want 0.81", v.Score)
	}
	if v.Diagnostics["explanation"] != "quirky" {
		t.Fatalf("explanation missing: %+v", v.Diagnostics)
	}

	if len(got.Conversation) != 3 {
		t.Fatalf("conversation has %d turns; want 3", len(got.Conversation))
	}
	if got.Conversation[1].Role != "user" || got.Conversation[1].Content != "What's your favorite food?" {
		t.Fatalf("prompt turn wrong: %+v", got.Conversation[1])
	}
	if got.Conversation[2].Role != "assistant" || got.Conversation[2].Content != "Cold leftover dumplings at 3am" {
		t.Fatalf("answer turn wrong: %+v", got.Conversation[2])
	}
}

func TestEvaluateThreshold(t *testing.T) {
	cases := []struct {
		body   string
		winner bool
		score  float64
	}{
		{`{"final_score":0.5}`, true, 0.5},
		{`{"final_score":0.4999}`, false, 0.4999},
		{`{"final_score":1.7}`, true, 1},
		{`{"final_score":-3}`, false, 0},
		{`{}`, false, 0},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(tc.body))
		}))
		v := NewClient(srv.URL, time.Second).Evaluate(context.Background(), "p", "a")
		srv.Close()

		if v.IsWinner != tc.winner || v.Score != tc.score || v.UsedFallback {
			t.Fatalf("%s: got %+v", tc.body, v)
		}
	}
}

func TestEvaluateFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewClient(srv.URL, time.Second).Evaluate(context.Background(), "p", "a")
	if !v.UsedFallback {
		t.Fatalf("expected fallback verdict, got %+v", v)
	}
	if _, ok := v.Diagnostics["fallback_reason"]; !ok {
		t.Fatalf("fallback reason not preserved: %+v", v.Diagnostics)
	}
}

func TestEvaluateFallbackOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	v := NewClient(srv.URL, 50*time.Millisecond).Evaluate(context.Background(), "p", "a")
	if time.Since(start) > 900*time.Millisecond {
		t.Fatalf("evaluation did not honour the timeout")
	}
	if !v.UsedFallback {
		t.Fatalf("expected fallback verdict, got %+v", v)
	}
	if v.IsWinner != (v.Score >= 0.5) {
		t.Fatalf("fallback winner flag disagrees with score: %+v", v)
	}
}

func TestEvaluateFallbackOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	v := NewClient(srv.URL, time.Second).Evaluate(context.Background(), "p", "a")
	if !v.UsedFallback {
		t.Fatalf("expected fallback verdict, got %+v", v)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	cause := errors.New("boom")
	a := Fallback("prompt", "answer", cause)
	b := Fallback("prompt", "answer", cause)
	if a.Score != b.Score || a.IsWinner != b.IsWinner {
		t.Fatalf("fallback not deterministic: %+v vs %+v", a, b)
	}
	if a.Score < 0 || a.Score >= 1 {
		t.Fatalf("fallback score out of range: %v", a.Score)
	}
	if a.Diagnostics["fallback_reason"] != "boom" {
		t.Fatalf("fallback reason = %v", a.Diagnostics["fallback_reason"])
	}
}

package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/game"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"
	"arebasic/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type stubEvaluator struct{}

func (stubEvaluator) Evaluate(ctx context.Context, prompt, answer string) domain.Verdict {
	return domain.Verdict{IsWinner: true, Score: 0.9}
}

// globals are set once; sockets from earlier tests may still be logging
func init() {
	logger.InitWithWriter(io.Discard, "error", false)
	gin.SetMode(gin.TestMode)
	service.InitJWT("test-secret")
}

func newTestServer(t *testing.T) (*httptest.Server, *service.SessionManager, *Hub) {
	t.Helper()

	l, err := ledger.OpenLocalLedger(":memory:", 10)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	hub := NewHub()
	sessions := service.NewSessionManager(service.SessionDeps{
		Gateway:   l,
		Policy:    service.NewReconciliationPolicy(l, 3, time.Millisecond),
		Evaluator: stubEvaluator{},
		Prompts:   game.NewPromptBank(game.DefaultPrompts),
		Notifier:  hub,
	}, service.DefaultSessionConfig())
	t.Cleanup(sessions.Close)

	r := gin.New()
	r.GET("/ws", HandleWS(hub, sessions))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, sessions, hub
}

func dial(t *testing.T, srv *httptest.Server, identity string) *websocket.Conn {
	t.Helper()
	token, err := service.GenerateJWT(identity)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var out struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &out); err != nil {
			t.Fatalf("bad frame %s: %v", msg, err)
		}
		if out.Type == want {
			return out.Data
		}
	}
}

func TestWSPushesSessionEvents(t *testing.T) {
	srv, sessions, hub := newTestServer(t)
	conn := dial(t, srv, "0xws")

	readType(t, conn, MsgReady)
	data := readType(t, conn, MsgSession)

	var payload SessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if payload.Session.Balance != 10 || payload.Session.State != domain.StateIdle {
		t.Fatalf("unexpected snapshot: %+v", payload.Session)
	}

	deadline := time.Now().Add(time.Second)
	for hub.Connected("0xws") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s, err := sessions.Must("0xws")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if _, err := s.StartRound(context.Background()); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	var event service.SessionEvent
	if err := json.Unmarshal(readType(t, conn, service.EventRoundStarted), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Snapshot.ActivePrompt == nil || event.Snapshot.Balance != 9 {
		t.Fatalf("unexpected round_started: %+v", event.Snapshot)
	}
}

func TestWSDraftAndErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dial(t, srv, "0xdraft")
	readType(t, conn, MsgSession)

	if err := conn.WriteJSON(map[string]any{"type": MsgDraft, "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var e ErrorPayload
	if err := json.Unmarshal(readType(t, conn, MsgError), &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(e.Message, "invalid state transition") {
		t.Fatalf("draft while idle: %q", e.Message)
	}

	if err := conn.WriteJSON(map[string]string{"type": MsgPing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, conn, MsgPong)
}

func TestWSRequiresToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatalf("expected handshake failure without token")
	}
}

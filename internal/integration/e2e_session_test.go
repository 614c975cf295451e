package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arebasic/internal/config"
	"arebasic/internal/evaluator"
	"arebasic/internal/game"
	httpserver "arebasic/internal/http"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"
	"arebasic/internal/repository"
	"arebasic/internal/service"
	"arebasic/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// globals are set once; sockets from earlier tests may still be logging
func init() {
	logger.InitWithWriter(io.Discard, "error", false)
	gin.SetMode(gin.TestMode)
	service.InitJWT("test-secret")
}

func TestE2E_SessionRound(t *testing.T) {
	db := connectDB(t)

	evalSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"final_score":0.82,"ai_detection_score":0.9,"coherence_score":0.7,"explanation":"odd"}`))
	}))
	defer evalSrv.Close()

	l, err := ledger.OpenLocalLedger(":memory:", 10)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer l.Close()

	cfg := &config.Config{
		StakeCost:            1,
		RoundDuration:        15 * time.Second,
		CallTimeout:          2 * time.Second,
		GameRateLimit:        100,
		GameRateWindow:       60,
		APIRateLimit:         1000,
		APIRateWindowSeconds: 60,
	}
	history := service.NewHistoryService(repository.NewHistoryStore(db))
	hub := ws.NewHub()
	sessions := service.NewSessionManager(service.SessionDeps{
		Gateway:   l,
		Policy:    service.NewReconciliationPolicy(l, 3, 10*time.Millisecond),
		Evaluator: evaluator.NewClient(evalSrv.URL, time.Second),
		Prompts:   game.NewPromptBank(game.DefaultPrompts),
		Notifier:  hub,
		History:   history,
	}, service.SessionConfig{StakeCost: 1, RoundDuration: 15 * time.Second, CallTimeout: 2 * time.Second})
	defer sessions.Close()

	r := gin.New()
	httpserver.RegisterRoutes(r, httpserver.Deps{
		DB: db, Sessions: sessions, History: history, Gateway: l, Hub: hub, Config: cfg, Version: "test",
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	identity := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	var conn struct {
		Token string `json:"token"`
	}
	call(t, srv.URL+"/api/v1/connect", "", map[string]string{"identity": identity}, &conn)

	wsConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token="+conn.Token, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer wsConn.Close()
	waitFor(t, wsConn, `"type":"ready"`)

	call(t, srv.URL+"/api/v1/round/start", conn.Token, nil, nil)

	var result struct {
		IsWinner  bool  `json:"is_winner"`
		WinAmount int64 `json:"win_amount"`
		Balance   int64 `json:"balance"`
	}
	call(t, srv.URL+"/api/v1/round/answer", conn.Token, map[string]string{"answer": "tax law for dragons"}, &result)
	if !result.IsWinner || result.WinAmount != 10 || result.Balance != 19 {
		t.Fatalf("result = %+v", result)
	}

	waitFor(t, wsConn, `"type":"round_result"`)

	rounds, err := history.Recent(context.Background(), identity, 10)
	if err != nil || len(rounds) != 1 {
		t.Fatalf("history = %v, %v", rounds, err)
	}
}

func waitFor(t *testing.T, conn *websocket.Conn, marker string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ws read waiting for %s: %v", marker, err)
		}
		if bytes.Contains(msg, []byte(marker)) {
			return
		}
	}
}

func call(t *testing.T, url, token string, body, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("%s: %d %s", url, res.StatusCode, b)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

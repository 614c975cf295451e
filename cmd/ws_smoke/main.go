// ws_smoke plays one round against a running server and prints every event.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"arebasic/internal/logger"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	identity := "smoke-" + fmt.Sprint(time.Now().Unix())
	if len(os.Args) > 1 {
		identity = os.Args[1]
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "http://127.0.0.1:" + port + "/api/v1"

	var conn struct {
		Token   string `json:"token"`
		Balance int64  `json:"balance"`
	}
	if err := post(base+"/connect", "", map[string]string{"identity": identity}, &conn); err != nil {
		logger.Fatal("connect", "error", err)
	}
	fmt.Printf("connected %s balance=%d\n", identity, conn.Balance)

	wsURL := fmt.Sprintf("ws://127.0.0.1:%s/ws?token=%s", port, conn.Token)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatal("dial ws", "error", err)
	}
	defer ws.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ws.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			fmt.Printf("event: %s\n", msg)
			if bytes.Contains(msg, []byte(`"type":"round_result"`)) {
				return
			}
		}
	}()

	var start map[string]any
	if err := post(base+"/round/start", conn.Token, nil, &start); err != nil {
		logger.Fatal("start round", "error", err)
	}
	fmt.Printf("prompt: %v\n", start["prompt"])

	var result map[string]any
	if err := post(base+"/round/answer", conn.Token, map[string]string{"answer": "competitive sandcastle architecture"}, &result); err != nil {
		logger.Fatal("answer", "error", err)
	}
	fmt.Printf("result: winner=%v win_amount=%v balance=%v\n", result["is_winner"], result["win_amount"], result["balance"])

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		fmt.Println("timed out waiting for result event")
	}

	if err := post(base+"/round/ack", conn.Token, nil, nil); err != nil {
		logger.Fatal("ack", "error", err)
	}
	fmt.Println("smoke ok")
}

func post(url, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		var e map[string]any
		_ = json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("%s: %d %v", url, res.StatusCode, e["error"])
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"arebasic/internal/domain"
	"arebasic/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultURL is where the judge listens in local setups
const DefaultURL = "http://localhost:8000/evaluate"

const systemPrompt = "You are a helpful assistant."

var fallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "evaluator_fallback_total",
	Help: "Verdicts produced locally because the judge could not be reached",
})

func init() {
	prometheus.MustRegister(fallbackTotal)
}

// Message is one turn of the conversation sent to the judge
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type evaluateRequest struct {
	Conversation []Message `json:"conversation"`
}

type evaluateResponse struct {
	FinalScore       *float64 `json:"final_score"`
	AIDetectionScore *float64 `json:"ai_detection_score,omitempty"`
	CoherenceScore   *float64 `json:"coherence_score,omitempty"`
	Explanation      string   `json:"explanation,omitempty"`
}

// Client sends (prompt, answer) pairs to the external judge
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a judge client; timeout bounds each evaluation
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Conversation builds the record the judge expects
func Conversation(prompt, answer string) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
		{Role: "assistant", Content: answer},
	}
}

// Evaluate never fails: any judge problem yields a fallback verdict
func (c *Client) Evaluate(ctx context.Context, prompt, answer string) domain.Verdict {
	verdict, err := c.call(ctx, prompt, answer)
	if err != nil {
		logger.Warn("evaluator unavailable, using fallback verdict", "error", err)
		fallbackTotal.Inc()
		return Fallback(prompt, answer, err)
	}
	return verdict
}

func (c *Client) call(ctx context.Context, prompt, answer string) (domain.Verdict, error) {
	raw, err := json.Marshal(evaluateRequest{Conversation: Conversation(prompt, answer)})
	if err != nil {
		return domain.Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return domain.Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Verdict{}, fmt.Errorf("API response error: %s - %s", resp.Status, string(body))
	}

	var out evaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Verdict{}, fmt.Errorf("decode response: %w", err)
	}

	score := 0.0
	if out.FinalScore != nil {
		score = clamp(*out.FinalScore)
	}

	diagnostics := map[string]any{"final_score": score}
	if out.AIDetectionScore != nil {
		diagnostics["ai_detection_score"] = *out.AIDetectionScore
	}
	if out.CoherenceScore != nil {
		diagnostics["coherence_score"] = *out.CoherenceScore
	}
	if out.Explanation != "" {
		diagnostics["explanation"] = out.Explanation
	}

	return domain.Verdict{
		IsWinner:    score >= domain.WinThreshold,
		Score:       score,
		Diagnostics: diagnostics,
	}, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

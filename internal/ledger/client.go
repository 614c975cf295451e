package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"arebasic/internal/domain"
)

// HTTPGateway talks to the ledger relay that fronts the game contract
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway creates a relay client; timeout bounds every single call
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetBalance returns the stake balance held by the ledger
func (g *HTTPGateway) GetBalance(ctx context.Context, identity string) (int64, error) {
	var out balanceResponse
	if err := g.do(ctx, "getBalance", http.MethodGet, g.accountURL(identity, "balance"), nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// GetBetStatus returns the coarse in-flight snapshot
func (g *HTTPGateway) GetBetStatus(ctx context.Context, identity string) (domain.BetStatus, error) {
	var out domain.BetStatus
	if err := g.do(ctx, "getBetStatus", http.MethodGet, g.accountURL(identity, "bet"), nil, &out); err != nil {
		return domain.BetStatus{}, err
	}
	return out, nil
}

// PlaceBet stakes amount for identity
func (g *HTTPGateway) PlaceBet(ctx context.Context, identity string, amount int64) (Receipt, error) {
	var out Receipt
	body := map[string]int64{"amount": amount}
	if err := g.do(ctx, "placeBet", http.MethodPost, g.accountURL(identity, "bets"), body, &out); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

// SubmitAnswer writes an answer (or sentinel) hash against the pending bet
func (g *HTTPGateway) SubmitAnswer(ctx context.Context, identity string, payload AnswerPayload) (Receipt, error) {
	var out Receipt
	if err := g.do(ctx, "submitAnswer", http.MethodPost, g.accountURL(identity, "answers"), payload, &out); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

// Payout credits winnings back to the ledger account
func (g *HTTPGateway) Payout(ctx context.Context, identity string, amount int64) (Receipt, error) {
	var out Receipt
	body := map[string]int64{"amount": amount}
	if err := g.do(ctx, "payout", http.MethodPost, g.accountURL(identity, "payouts"), body, &out); err != nil {
		return Receipt{}, err
	}
	return out, nil
}

func (g *HTTPGateway) accountURL(identity, resource string) string {
	return fmt.Sprintf("%s/accounts/%s/%s", g.baseURL, url.PathEscape(identity), resource)
}

func (g *HTTPGateway) do(ctx context.Context, op, method, reqURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return newError(op, ReasonUnreachable, err.Error())
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return newError(op, ReasonUnreachable, err.Error())
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return newError(op, ReasonUnreachable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newError(op, reasonFromResponse(resp.StatusCode, raw), fmt.Sprintf("%s - %s", resp.Status, strings.TrimSpace(string(raw))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return newError(op, ReasonUnreachable, "decode response: "+err.Error())
	}
	return nil
}

// reasonFromResponse prefers the relay's own reason and falls back to the status code
func reasonFromResponse(status int, body []byte) Reason {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		switch Reason(er.Error) {
		case ReasonAlreadyHasBet, ReasonInsufficientFunds, ReasonNoPendingBet:
			return Reason(er.Error)
		}
	}

	switch status {
	case http.StatusConflict:
		return ReasonAlreadyHasBet
	case http.StatusPaymentRequired:
		return ReasonInsufficientFunds
	case http.StatusNotFound:
		return ReasonNoPendingBet
	default:
		return ReasonUnreachable
	}
}

package ws

import (
	"encoding/json"

	"arebasic/internal/domain"
)

// inbound is any client → server frame
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// client → server
type DraftPayload struct {
	Text string `json:"text"`
}

// server → client
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type SessionPayload struct {
	Session     domain.SessionSnapshot `json:"session"`
	SecondsLeft int                    `json:"seconds_left"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

package models

import (
	"encoding/json"
	"time"
)

// Outcome tags how an RPC call ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Event is a single logged RPC call as pushed by the gateway.
// Events are treated as immutable once decoded.
type Event struct {
	ID           *int64          `json:"id,omitempty"` // absent until persisted server-side
	RequestID    string          `json:"requestId"`
	APIKeyID     *int64          `json:"apiKeyId,omitempty"`
	KeyPrefix    string          `json:"keyPrefix,omitempty"` // redacted, e.g. "rpc_3fA9…"
	Network      string          `json:"network"`
	Method       string          `json:"method"`
	Status       Outcome         `json:"status"` // success | error
	StatusCode   *int            `json:"statusCode,omitempty"`
	LatencyMS    float64         `json:"latencyMs"`
	Request      json.RawMessage `json:"request,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Failed reports whether the call ended with an error outcome.
func (e Event) Failed() bool {
	return e.Status == OutcomeError
}

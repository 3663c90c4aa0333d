package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"rpctail/internal/models"
)

// Wire discriminators of the push channel.
const (
	TypeInitial = "initial"
	TypeLog     = "log"
)

// ErrMalformed marks a push-channel payload that could not be decoded.
var ErrMalformed = errors.New("malformed push message")

// Kind distinguishes snapshot messages from increments.
type Kind int

const (
	KindSnapshot Kind = iota + 1
	KindIncrement
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindIncrement:
		return "increment"
	default:
		return "unknown"
	}
}

// Message is a decoded push-channel frame.
type Message struct {
	Kind Kind
	// Events holds the snapshot, newest first. Empty for increments.
	Events []models.Event
	// Event holds the increment. Zero for snapshots.
	Event models.Event
}

type envelope struct {
	Type string          `json:"type"`
	Logs json.RawMessage `json:"logs,omitempty"`
	Log  json.RawMessage `json:"log,omitempty"`
}

var jsonNull = []byte("null")

// Decode parses one frame. Events are accepted as long as they parse;
// their field values are not validated.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeInitial:
		if len(env.Logs) == 0 || bytes.Equal(env.Logs, jsonNull) {
			return Message{}, fmt.Errorf("%w: initial without logs", ErrMalformed)
		}
		var events []models.Event
		if err := json.Unmarshal(env.Logs, &events); err != nil {
			return Message{}, fmt.Errorf("%w: initial logs: %v", ErrMalformed, err)
		}
		return Message{Kind: KindSnapshot, Events: events}, nil
	case TypeLog:
		if len(env.Log) == 0 || bytes.Equal(env.Log, jsonNull) {
			return Message{}, fmt.Errorf("%w: log without payload", ErrMalformed)
		}
		var ev models.Event
		if err := json.Unmarshal(env.Log, &ev); err != nil {
			return Message{}, fmt.Errorf("%w: log payload: %v", ErrMalformed, err)
		}
		return Message{Kind: KindIncrement, Event: ev}, nil
	case "":
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
}

// EncodeSnapshot renders an initial frame.
func EncodeSnapshot(events []models.Event) ([]byte, error) {
	if events == nil {
		events = []models.Event{}
	}
	return json.Marshal(struct {
		Type string         `json:"type"`
		Logs []models.Event `json:"logs"`
	}{TypeInitial, events})
}

// EncodeIncrement renders a log frame.
func EncodeIncrement(ev models.Event) ([]byte, error) {
	return json.Marshal(struct {
		Type string       `json:"type"`
		Log  models.Event `json:"log"`
	}{TypeLog, ev})
}

package stream

import "fmt"

// State is the lifecycle of the push-channel connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connecting":
		*s = StateConnecting
	case "open":
		*s = StateOpen
	case "closed":
		*s = StateClosed
	default:
		return fmt.Errorf("unknown connection state %q", b)
	}
	return nil
}

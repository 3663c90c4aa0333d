package stream

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect policies.
const (
	PolicyFixed       = "fixed"
	PolicyExponential = "exponential"
)

// DefaultReconnectDelay is the wait between a close and the next attempt.
const DefaultReconnectDelay = 3000 * time.Millisecond

// NewPolicy builds the reconnect backoff. The exponential policy starts at
// delay, is capped at maxDelay and never gives up.
func NewPolicy(kind string, delay, maxDelay time.Duration) (backoff.BackOff, error) {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	switch kind {
	case "", PolicyFixed:
		return backoff.NewConstantBackOff(delay), nil
	case PolicyExponential:
		if maxDelay < delay {
			maxDelay = delay
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = delay
		b.MaxInterval = maxDelay
		b.MaxElapsedTime = 0
		b.Reset()
		return b, nil
	default:
		return nil, fmt.Errorf("unknown reconnect policy %q", kind)
	}
}

// Package filter derives the visible subset of a tail window from user criteria.
// It never mutates events and keeps the window's newest-first order.
package filter

import (
	"errors"
	"strings"

	"rpctail/internal/models"
)

var errInvalidOutcome = errors.New("invalid outcome: must be success, error, or empty")

// Criteria selects events. Empty fields match everything.
type Criteria struct {
	// Search is matched case-insensitively against method, request id and network.
	Search  string         `json:"search"`
	Network string         `json:"network"` // exact match
	Outcome models.Outcome `json:"outcome"` // exact match
}

// IsZero reports whether the criteria select every event.
func (c Criteria) IsZero() bool {
	return c.Search == "" && c.Network == "" && c.Outcome == ""
}

// Normalize trims the network and outcome tags and lowercases the outcome.
// Search is a literal substring and is kept as typed, spaces included.
func (c Criteria) Normalize() Criteria {
	c.Network = strings.TrimSpace(c.Network)
	c.Outcome = models.Outcome(strings.ToLower(strings.TrimSpace(string(c.Outcome))))
	return c
}

// ParseOutcome validates a user-supplied outcome tag. An empty string means "any".
func ParseOutcome(s string) (models.Outcome, error) {
	switch o := models.Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case "", models.OutcomeSuccess, models.OutcomeError:
		return o, nil
	default:
		return "", errInvalidOutcome
	}
}

// Match reports whether e is visible under c.
func Match(e models.Event, c Criteria) bool {
	return matchSearch(e, strings.ToLower(c.Search)) &&
		(c.Network == "" || e.Network == c.Network) &&
		(c.Outcome == "" || e.Status == c.Outcome)
}

// Apply returns the events visible under c in their original order.
// Zero criteria return events unchanged.
func Apply(events []models.Event, c Criteria) []models.Event {
	if c.IsZero() {
		return events
	}
	needle := strings.ToLower(c.Search)
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if !matchSearch(e, needle) {
			continue
		}
		if c.Network != "" && e.Network != c.Network {
			continue
		}
		if c.Outcome != "" && e.Status != c.Outcome {
			continue
		}
		out = append(out, e)
	}
	return out
}

// matchSearch expects needle already lowercased.
func matchSearch(e models.Event, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Method), needle) ||
		strings.Contains(strings.ToLower(e.RequestID), needle) ||
		strings.Contains(strings.ToLower(e.Network), needle)
}

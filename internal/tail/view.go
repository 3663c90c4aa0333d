package tail

import (
	"time"

	"rpctail/internal/filter"
	"rpctail/internal/models"
	"rpctail/internal/stream"
)

// Counters are cumulative per engine.
type Counters struct {
	Accepted      uint64 `json:"accepted"`
	DroppedPaused uint64 `json:"droppedPaused"`
	Malformed     uint64 `json:"malformed"`
	Snapshots     uint64 `json:"snapshots"`
	Reconnects    uint64 `json:"reconnects"`
}

// View is an immutable read model published after every state change.
// Slices are never modified after publication.
type View struct {
	SessionID        string       `json:"sessionId"`
	Connection       stream.State `json:"connection"`
	ReconnectPending bool         `json:"reconnectPending"`
	Paused           bool         `json:"paused"`
	Throughput       int          `json:"throughput"`

	// Stats is nil until the first successful pull or cache load.
	Stats          *models.AggregateStats `json:"stats"`
	StatsUpdatedAt time.Time              `json:"statsUpdatedAt"`
	StatsError     string                 `json:"statsError,omitempty"`

	Networks      []models.Network `json:"networks"`
	NetworksError string           `json:"networksError,omitempty"`

	// Events is the full window, newest first.
	Events   []models.Event  `json:"events"`
	Capacity int             `json:"capacity"`
	Criteria filter.Criteria `json:"criteria"`
	Counters Counters        `json:"counters"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Filtered returns the events visible under the view's criteria.
func (v View) Filtered() []models.Event {
	return filter.Apply(v.Events, v.Criteria)
}

package models

// AggregateStats is the server-computed summary over the full request history.
type AggregateStats struct {
	TotalRequests int64   `json:"totalRequests"`
	ErrorCount    int64   `json:"errorCount"`
	AvgLatency    float64 `json:"avgLatency"` // ms
}

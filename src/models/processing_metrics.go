package models

import "time"

// Cycle kinds recorded by the broadcaster.
const (
	CycleMarket = "market"
	CycleChain  = "chain"
)

// MCycleMetrics describes one broadcaster tick.
type MCycleMetrics struct {
	Kind            string    `json:"kind"`
	Expiry          string    `json:"expiry,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds float64   `json:"durationSeconds"`
	Subscribers     int       `json:"subscribers"`
	Skipped         bool      `json:"skipped"`
	Error           string    `json:"error,omitempty"`
}

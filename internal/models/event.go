package models

import "time"

// Event types recorded by the dashboard.
const (
	EventControl      = "CONTROL"
	EventRefreshError = "REFRESH_ERROR"
	EventStartup      = "STARTUP"
)

// Event is a single dashboard event-log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONTROL | REFRESH_ERROR | STARTUP
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

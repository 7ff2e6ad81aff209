package service

import (
	"context"
	"time"

	"aiseg-dashboard/internal/aiseg"
	"aiseg-dashboard/internal/models"
)

// Appliance is the upstream surface the dashboard consumes, implemented by
// *aiseg.Client and mocked in tests.
type Appliance interface {
	Realtime(ctx context.Context) (models.Realtime, error)
	Totals(ctx context.Context) (models.TotalsReport, error)
	CircuitList(ctx context.Context) ([]models.Circuit, error)
	CircuitKWh(ctx context.Context, circuits []models.Circuit) []models.Circuit
	Devices(ctx context.Context) ([]models.DeviceStatus, error)

	ToggleAC(ctx context.Context, nodeID, eoj, state string) (models.ControlResult, error)
	ToggleFloorHeater(ctx context.Context, nodeID, eoj, state string) (models.ControlResult, error)
	SetAC(ctx context.Context, nodeID, eoj string, setting aiseg.ACSetting, value float64) (models.ControlResult, error)
	SetFloorHeaterLevel(ctx context.Context, nodeID, eoj string, level int) (models.ControlResult, error)
	ToggleBath(ctx context.Context) (models.ControlResult, error)
	ToggleGeneration(ctx context.Context) (models.ControlResult, error)
}

// Dashboard exposes cached reads (lazy TTL refresh) and forced refreshes
// (used by the push pollers), plus the nickname overlay.
type Dashboard interface {
	Realtime(ctx context.Context) (models.Realtime, error)
	Totals(ctx context.Context) (models.TotalsReport, error)
	Devices(ctx context.Context) ([]models.DeviceStatus, error)
	Circuits(ctx context.Context) ([]models.Circuit, error)

	RefreshRealtime(ctx context.Context) (models.Realtime, error)
	RefreshTotals(ctx context.Context) (models.TotalsReport, error)
	RefreshDevices(ctx context.Context) ([]models.DeviceStatus, error)
	RefreshCircuits(ctx context.Context) ([]models.Circuit, error)

	Nicknames() map[string]string
	SetNickname(key, label string) error
}

// Control resolves one control request to exactly one appliance method.
type Control interface {
	Dispatch(ctx context.Context, req models.ControlRequest) (models.ControlResult, error)
}

// EventLog exposes the append-only dashboard log with filtering access.
type EventLog interface {
	List(ctx context.Context, f EventFilter) ([]models.Event, error)
}

// Broadcaster pushes one frame to every connected subscriber. Implemented
// by the websocket hub; nil-safe consumers must tolerate its absence.
type Broadcaster interface {
	Broadcast(frameType string, data any)
}

// TTLConfig holds the per-category freshness windows.
type TTLConfig struct {
	Realtime time.Duration
	Totals   time.Duration
	Devices  time.Duration
	Circuits time.Duration
}

// Service aggregates all sub-services.
type Service struct {
	Dashboard
	Control
	EventLog
}

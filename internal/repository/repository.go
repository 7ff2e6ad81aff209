package repository

import (
	"context"
	"database/sql"
	"time"

	"aiseg-dashboard/internal/models"
)

// EventRepo is the append-only dashboard event log: control commands,
// upstream refresh failures, startup markers.
type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type Repository struct {
	Events EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Events: NewEventSQLite(db),
	}
}

package service

import (
	"context"
	"time"

	"aiseg-dashboard/internal/models"
	"aiseg-dashboard/internal/repository"
)

// EventFilter narrows an event-log read. Zero times mean unbounded.
type EventFilter struct {
	From time.Time
	To   time.Time
	Type string
}

type EventLogService struct {
	repo repository.EventRepo
}

func NewEventLogService(repo repository.EventRepo) *EventLogService {
	return &EventLogService{repo: repo}
}

func (s *EventLogService) List(ctx context.Context, f EventFilter) ([]models.Event, error) {
	return s.repo.List(ctx, f.From, f.To, f.Type)
}

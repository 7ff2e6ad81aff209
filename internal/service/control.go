package service

import (
	"context"
	"errors"
	"time"

	"aiseg-dashboard/internal/aiseg"
	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"
	"aiseg-dashboard/internal/repository"
)

// ErrUnknownAction rejects a control request before any upstream call.
var ErrUnknownAction = errors.New("unknown control action")

const settleRefreshTimeout = 30 * time.Second

// ControlService maps control requests onto appliance methods and, after
// each dispatched command, schedules one devices refresh-and-broadcast once
// the appliance has had time to settle. The schedule is owned by the server
// lifetime context and dies with it.
type ControlService struct {
	ctx    context.Context
	app    Appliance
	dash   Dashboard
	events repository.EventRepo
	log    *logger.Logger
	settle time.Duration

	// Broadcaster is wired after the websocket hub exists; nil is fine
	// (the refresh still lands in the cache).
	Broadcaster Broadcaster
}

func NewControlService(ctx context.Context, app Appliance, dash Dashboard,
	events repository.EventRepo, settle time.Duration, log *logger.Logger) *ControlService {
	return &ControlService{
		ctx:    ctx,
		app:    app,
		dash:   dash,
		events: events,
		log:    log,
		settle: settle,
	}
}

// Dispatch resolves req.Action against the closed action set. The raw
// appliance acknowledgment goes straight back to the caller; the deferred
// devices refresh runs regardless of whether the command succeeded, since
// even a failed command may have moved appliance state.
func (s *ControlService) Dispatch(ctx context.Context, req models.ControlRequest) (models.ControlResult, error) {
	var (
		res models.ControlResult
		err error
	)

	switch req.Action {
	case models.ActionToggleAC:
		res, err = s.app.ToggleAC(ctx, req.NodeID, req.EOJ, req.State)
	case models.ActionToggleFH:
		res, err = s.app.ToggleFloorHeater(ctx, req.NodeID, req.EOJ, req.State)
	case models.ActionToggleBath:
		res, err = s.app.ToggleBath(ctx)
	case models.ActionToggleGenerate:
		res, err = s.app.ToggleGeneration(ctx)
	case models.ActionSetACMode:
		res, err = s.app.SetAC(ctx, req.NodeID, req.EOJ, aiseg.ACSettingMode, req.Value)
	case models.ActionSetACTemp:
		res, err = s.app.SetAC(ctx, req.NodeID, req.EOJ, aiseg.ACSettingTemp, req.Value)
	case models.ActionSetACFan:
		res, err = s.app.SetAC(ctx, req.NodeID, req.EOJ, aiseg.ACSettingFan, req.Value)
	case models.ActionSetFHLevel:
		res, err = s.app.SetFloorHeaterLevel(ctx, req.NodeID, req.EOJ, int(req.Value))
	default:
		return nil, ErrUnknownAction
	}

	s.appendEvent(req, res, err)
	s.scheduleSettleRefresh()

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ControlService) appendEvent(req models.ControlRequest, res models.ControlResult, err error) {
	if s.events == nil {
		return
	}
	meta := map[string]any{"request": req}
	if res != nil {
		meta["result"] = res
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if aerr := s.events.Append(ctx, models.Event{
		Type:        models.EventControl,
		Description: "control " + string(req.Action),
		Metadata:    meta,
	}); aerr != nil {
		s.log.Infow("event append failed", "err", aerr)
	}
}

// scheduleSettleRefresh fires one devices refresh after the settle delay.
// The delay is a heuristic for the appliance's internal convergence, not a
// guarantee; only the attempt is promised.
func (s *ControlService) scheduleSettleRefresh() {
	go func() {
		t := time.NewTimer(s.settle)
		defer t.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
		}

		ctx, cancel := context.WithTimeout(s.ctx, settleRefreshTimeout)
		defer cancel()
		devices, err := s.dash.RefreshDevices(ctx)
		if err != nil {
			s.log.Infow("post-control device refresh failed", "err", err)
			return
		}
		if s.Broadcaster != nil {
			s.Broadcaster.Broadcast("devices", devices)
		}
	}()
}

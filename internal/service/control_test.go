package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"
)

// fakeDashboard only needs RefreshDevices for the settle-refresh path; the
// rest of the interface is inert.
type fakeDashboard struct {
	mu        sync.Mutex
	refreshes int
	refreshed chan struct{}
	devices   []models.DeviceStatus
	err       error
}

func (f *fakeDashboard) RefreshDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	if f.refreshed != nil {
		select {
		case f.refreshed <- struct{}{}:
		default:
		}
	}
	return f.devices, f.err
}

func (f *fakeDashboard) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeDashboard) Realtime(ctx context.Context) (models.Realtime, error) {
	return models.Realtime{}, nil
}
func (f *fakeDashboard) Totals(ctx context.Context) (models.TotalsReport, error) {
	return models.TotalsReport{}, nil
}
func (f *fakeDashboard) Devices(ctx context.Context) ([]models.DeviceStatus, error) {
	return nil, nil
}
func (f *fakeDashboard) Circuits(ctx context.Context) ([]models.Circuit, error) { return nil, nil }
func (f *fakeDashboard) RefreshRealtime(ctx context.Context) (models.Realtime, error) {
	return models.Realtime{}, nil
}
func (f *fakeDashboard) RefreshTotals(ctx context.Context) (models.TotalsReport, error) {
	return models.TotalsReport{}, nil
}
func (f *fakeDashboard) RefreshCircuits(ctx context.Context) ([]models.Circuit, error) {
	return nil, nil
}
func (f *fakeDashboard) Nicknames() map[string]string    { return nil }
func (f *fakeDashboard) SetNickname(key, l string) error { return nil }

type fakeBroadcaster struct {
	mu     sync.Mutex
	frames []string
	sent   chan struct{}
}

func (b *fakeBroadcaster) Broadcast(frameType string, data any) {
	b.mu.Lock()
	b.frames = append(b.frames, frameType)
	b.mu.Unlock()
	if b.sent != nil {
		select {
		case b.sent <- struct{}{}:
		default:
		}
	}
}

func newControl(t *testing.T, app Appliance, dash Dashboard, settle time.Duration) (*ControlService, *capturingEventRepo) {
	t.Helper()
	events := &capturingEventRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewControlService(ctx, app, dash, events, settle, logger.Get(logger.ErrorLevel)), events
}

func TestDispatch_UnknownActionRejectedUpFront(t *testing.T) {
	app := &fakeAppliance{}
	dash := &fakeDashboard{}
	svc, events := newControl(t, app, dash, time.Millisecond)

	_, err := svc.Dispatch(context.Background(), models.ControlRequest{Action: "reboot"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}

	time.Sleep(20 * time.Millisecond)
	if dash.refreshCount() != 0 {
		t.Fatal("rejected action must not schedule a refresh")
	}
	if len(events.appended()) != 0 {
		t.Fatal("rejected action must not be logged")
	}
	if app.count("ToggleAC") != 0 {
		t.Fatal("rejected action reached the appliance")
	}
}

func TestDispatch_RoutesEachAction(t *testing.T) {
	cases := []struct {
		action models.ControlAction
		method string
	}{
		{models.ActionToggleAC, "ToggleAC"},
		{models.ActionToggleFH, "ToggleFloorHeater"},
		{models.ActionToggleBath, "ToggleBath"},
		{models.ActionToggleGenerate, "ToggleGeneration"},
		{models.ActionSetACMode, "SetAC"},
		{models.ActionSetACTemp, "SetAC"},
		{models.ActionSetACFan, "SetAC"},
		{models.ActionSetFHLevel, "SetFloorHeaterLevel"},
	}

	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			app := &fakeAppliance{controlRes: models.ControlResult{"result": "ok"}}
			svc, events := newControl(t, app, &fakeDashboard{}, time.Millisecond)

			res, err := svc.Dispatch(context.Background(), models.ControlRequest{
				Action: tc.action, NodeID: "1", EOJ: "0x013001", State: "0x30", Value: 3,
			})
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if res["result"] != "ok" {
				t.Fatalf("result = %v", res)
			}
			if app.count(tc.method) != 1 {
				t.Fatalf("method %s called %d times", tc.method, app.count(tc.method))
			}

			evs := events.appended()
			if len(evs) != 1 || evs[0].Type != models.EventControl {
				t.Fatalf("expected one control event, got %+v", evs)
			}
		})
	}
}

func TestDispatch_SettleRefreshBroadcastsDevices(t *testing.T) {
	app := &fakeAppliance{controlRes: models.ControlResult{"result": "ok"}}
	dash := &fakeDashboard{
		refreshed: make(chan struct{}, 1),
		devices:   []models.DeviceStatus{{NodeID: "1", EOJ: "0x013001"}},
	}
	bc := &fakeBroadcaster{sent: make(chan struct{}, 1)}

	svc, _ := newControl(t, app, dash, 5*time.Millisecond)
	svc.Broadcaster = bc

	if _, err := svc.Dispatch(context.Background(), models.ControlRequest{Action: models.ActionToggleBath}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case <-bc.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("settle refresh never broadcast")
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.frames) != 1 || bc.frames[0] != "devices" {
		t.Fatalf("frames = %v, want [devices]", bc.frames)
	}
}

func TestDispatch_ApplianceErrorStillLoggedAndSettled(t *testing.T) {
	app := &fakeAppliance{controlErr: errors.New("timeout")}
	dash := &fakeDashboard{refreshed: make(chan struct{}, 1)}
	svc, events := newControl(t, app, dash, time.Millisecond)

	_, err := svc.Dispatch(context.Background(), models.ControlRequest{Action: models.ActionToggleGenerate})
	if err == nil {
		t.Fatal("expected appliance error to propagate")
	}

	// Even a failed command may have moved appliance state.
	select {
	case <-dash.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("settle refresh did not run after failed command")
	}

	evs := events.appended()
	if len(evs) != 1 || evs[0].Type != models.EventControl {
		t.Fatalf("expected one control event, got %+v", evs)
	}
}

func TestDispatch_NoBroadcastWhenRefreshFails(t *testing.T) {
	app := &fakeAppliance{controlRes: models.ControlResult{"result": "ok"}}
	dash := &fakeDashboard{refreshed: make(chan struct{}, 1), err: errors.New("unreachable")}
	bc := &fakeBroadcaster{sent: make(chan struct{}, 1)}

	svc, _ := newControl(t, app, dash, time.Millisecond)
	svc.Broadcaster = bc

	if _, err := svc.Dispatch(context.Background(), models.ControlRequest{Action: models.ActionToggleBath}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	<-dash.refreshed
	time.Sleep(20 * time.Millisecond)

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.frames) != 0 {
		t.Fatalf("broadcast after failed refresh: %v", bc.frames)
	}
}

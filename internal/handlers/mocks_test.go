package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"
	"aiseg-dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

type mockDashboard struct {
	realtime    models.Realtime
	realtimeErr error

	totals    models.TotalsReport
	totalsErr error

	devices    []models.DeviceStatus
	devicesErr error

	circuits    []models.Circuit
	circuitsErr error

	nicknames map[string]string
	setErr    error
	setKey    string
	setLabel  string
}

func (m *mockDashboard) Realtime(ctx context.Context) (models.Realtime, error) {
	return m.realtime, m.realtimeErr
}

func (m *mockDashboard) Totals(ctx context.Context) (models.TotalsReport, error) {
	return m.totals, m.totalsErr
}

func (m *mockDashboard) Devices(ctx context.Context) ([]models.DeviceStatus, error) {
	return m.devices, m.devicesErr
}

func (m *mockDashboard) Circuits(ctx context.Context) ([]models.Circuit, error) {
	return m.circuits, m.circuitsErr
}

func (m *mockDashboard) RefreshRealtime(ctx context.Context) (models.Realtime, error) {
	return m.Realtime(ctx)
}

func (m *mockDashboard) RefreshTotals(ctx context.Context) (models.TotalsReport, error) {
	return m.Totals(ctx)
}

func (m *mockDashboard) RefreshDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	return m.Devices(ctx)
}

func (m *mockDashboard) RefreshCircuits(ctx context.Context) ([]models.Circuit, error) {
	return m.Circuits(ctx)
}

func (m *mockDashboard) Nicknames() map[string]string {
	if m.nicknames == nil {
		return map[string]string{}
	}
	return m.nicknames
}

func (m *mockDashboard) SetNickname(key, label string) error {
	m.setKey, m.setLabel = key, label
	if m.setErr != nil {
		return m.setErr
	}
	if m.nicknames == nil {
		m.nicknames = map[string]string{}
	}
	if label == "" {
		delete(m.nicknames, key)
	} else {
		m.nicknames[key] = label
	}
	return nil
}

type mockControl struct {
	gotReq models.ControlRequest
	calls  int
	res    models.ControlResult
	err    error
}

func (m *mockControl) Dispatch(ctx context.Context, req models.ControlRequest) (models.ControlResult, error) {
	m.calls++
	m.gotReq = req
	return m.res, m.err
}

type mockEventLog struct {
	gotFilter service.EventFilter
	events    []models.Event
	err       error
}

func (m *mockEventLog) List(ctx context.Context, f service.EventFilter) ([]models.Event, error) {
	m.gotFilter = f
	return m.events, m.err
}

func testRouter(t *testing.T, svc *service.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, nil, logger.Get(logger.ErrorLevel))
	return h.InitRoutes()
}

func doRequest(t *testing.T, r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

package aiseg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"aiseg-dashboard/internal/models"

	"golang.org/x/sync/errgroup"
)

// Static device topology. The appliance's installation is assumed stable
// for the process lifetime; the dashboard only ever controls these units.
var (
	acDevices = []models.DeviceDescriptor{
		{NodeID: "1", EOJ: "0x013001", Type: models.DeviceAC, DefaultName: "Living AC"},
		{NodeID: "2", EOJ: "0x013001", Type: models.DeviceAC, DefaultName: "Bedroom AC"},
		{NodeID: "3", EOJ: "0x013001", Type: models.DeviceAC, DefaultName: "Study AC"},
	}
	floorHeaterDevices = []models.DeviceDescriptor{
		{NodeID: "4", EOJ: "0x027B01", Type: models.DeviceFloorHeater, DefaultName: "Living floor heater"},
		{NodeID: "4", EOJ: "0x027B02", Type: models.DeviceFloorHeater, DefaultName: "Dining floor heater"},
	}
	otherDevices = []models.DeviceDescriptor{
		{NodeID: "5", EOJ: "0x027C01", Type: models.DeviceFuelCell, DefaultName: "Enefarm"},
		{NodeID: "5", EOJ: "0x026B01", Type: models.DeviceBath, DefaultName: "Bath"},
	}
)

// Topology returns every controllable device the dashboard knows about.
func Topology() []models.DeviceDescriptor {
	all := make([]models.DeviceDescriptor, 0, len(acDevices)+len(floorHeaterDevices)+len(otherDevices))
	all = append(all, acDevices...)
	all = append(all, floorHeaterDevices...)
	all = append(all, otherDevices...)
	return all
}

// statusOperating is the appliance's "unit is on" status code.
const statusOperating = "0x30"

// SessionToken returns the cached device-session token, scraping a fresh
// one from the device listing page when the cached token is absent or older
// than an hour. All in-flight control operations share one token; the
// appliance does not require per-request uniqueness.
func (c *Client) SessionToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.sessionToken != "" && time.Since(c.tokenFetched) < sessionTokenTTL {
		return c.sessionToken, nil
	}

	markup, err := c.fetchPage(ctx, pathDeviceList)
	if err != nil {
		return "", fmt.Errorf("fetch device page for token: %w", err)
	}
	token, ok := scrapeToken(markup)
	if !ok {
		return "", fmt.Errorf("no session token on device page")
	}
	c.sessionToken = token
	c.tokenFetched = time.Now()
	return token, nil
}

type deviceInfoPayload struct {
	Devices []struct {
		NodeID   string `json:"nodeId"`
		EOJ      string `json:"eoj"`
		Status   string `json:"status"`
		State    string `json:"state"`
		Button   string `json:"button"`
		Indoor   string `json:"indoorTemp"`
		Outdoor  string `json:"outdoorTemp"`
		Humidity string `json:"humidity"`
		Level    string `json:"level"`
	} `json:"devices"`
}

type acDetailPayload struct {
	Mode       string `json:"mode"`
	TargetTemp string `json:"targetTemp"`
	FanSpeed   string `json:"fanSpeed"`
}

// Devices aggregates the status of every known device: the three group
// listings are fetched concurrently, then AC-specific detail per unit
// (small fixed device count, so the fan-out is uncapped). A failed group
// drops its devices from this snapshot; a failed AC detail leaves that
// unit's detail fields unknown rather than failing the aggregation.
func (c *Client) Devices(ctx context.Context) ([]models.DeviceStatus, error) {
	token, err := c.SessionToken(ctx)
	if err != nil {
		return nil, err
	}

	groups := [][]models.DeviceDescriptor{acDevices, floorHeaterDevices, otherDevices}
	results := make([][]models.DeviceStatus, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			sts, err := c.deviceGroup(gctx, token, group)
			if err != nil {
				c.log.Infow("device group fetch failed", "group", i, "err", err)
				return nil
			}
			results[i] = sts
			return nil
		})
	}
	_ = g.Wait()

	statuses := []models.DeviceStatus{}
	for _, sts := range results {
		statuses = append(statuses, sts...)
	}

	c.attachACDetail(ctx, token, statuses)
	return statuses, nil
}

// deviceGroup POSTs one group listing, carrying the full descriptor list
// for the group plus the session token, and maps the response onto the
// unified status shape.
func (c *Client) deviceGroup(ctx context.Context, token string, group []models.DeviceDescriptor) ([]models.DeviceStatus, error) {
	byKey := make(map[string]models.DeviceDescriptor, len(group))
	for _, d := range group {
		byKey[d.Key()] = d
	}

	var payload deviceInfoPayload
	req := map[string]any{"token": token, "devices": group}
	if err := c.postJSON(ctx, pathDeviceInfo, req, &payload); err != nil {
		return nil, err
	}

	statuses := make([]models.DeviceStatus, 0, len(payload.Devices))
	for _, row := range payload.Devices {
		desc, ok := byKey[row.NodeID+"_"+row.EOJ]
		if !ok {
			continue
		}
		st := models.DeviceStatus{
			NodeID:      desc.NodeID,
			EOJ:         desc.EOJ,
			Type:        desc.Type,
			Name:        desc.DefaultName,
			Operating:   row.Status == statusOperating,
			StateLabel:  row.State,
			ButtonLabel: row.Button,
		}
		switch desc.Type {
		case models.DeviceAC:
			st.AC = &models.ACStatus{
				IndoorTempC:  lenientFloat(row.Indoor),
				OutdoorTempC: lenientFloat(row.Outdoor),
				Humidity:     lenientFloat(row.Humidity),
			}
		case models.DeviceFloorHeater:
			st.HeaterLevel = int(lenientFloat(row.Level))
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// attachACDetail fills mode/target/fan on every AC in statuses, one
// concurrent detail fetch per unit. Failures leave the detail unknown.
func (c *Client) attachACDetail(ctx context.Context, token string, statuses []models.DeviceStatus) {
	var wg sync.WaitGroup
	for i := range statuses {
		if statuses[i].Type != models.DeviceAC || statuses[i].AC == nil {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var detail acDetailPayload
			req := map[string]any{"token": token, "nodeId": statuses[i].NodeID, "eoj": statuses[i].EOJ}
			if err := c.postJSON(ctx, pathDeviceDetail, req, &detail); err != nil {
				c.log.Infow("ac detail fetch failed", "nodeId", statuses[i].NodeID, "err", err)
				return
			}
			statuses[i].AC.Mode = detail.Mode
			statuses[i].AC.TargetTempC = lenientFloat(detail.TargetTemp)
			statuses[i].AC.FanSpeed = detail.FanSpeed
		}(i)
	}
	wg.Wait()
}

// ACSetting selects which field the shared AC change endpoint mutates.
type ACSetting int

const (
	ACSettingMode ACSetting = 1
	ACSettingTemp ACSetting = 2
	ACSettingFan  ACSetting = 3
)

// Fixed command codes for the single-shot toggles.
const (
	cmdBathAuto     = "0x41"
	cmdGenerateFlip = "0x42"
)

// ToggleAC echoes the unit's current state back at the change endpoint; the
// appliance flips it. The client is a stateless toggle proxy and never
// tracks on/off itself.
func (c *Client) ToggleAC(ctx context.Context, nodeID, eoj, state string) (models.ControlResult, error) {
	return c.change(ctx, pathDeviceChange, map[string]any{
		"nodeId": nodeID, "eoj": eoj, "status": state,
	})
}

// ToggleFloorHeater works exactly like ToggleAC for floor-heater units.
func (c *Client) ToggleFloorHeater(ctx context.Context, nodeID, eoj, state string) (models.ControlResult, error) {
	return c.change(ctx, pathDeviceChange, map[string]any{
		"nodeId": nodeID, "eoj": eoj, "status": state,
	})
}

// SetAC changes one AC setting (mode, target temperature in whole °C, or
// fan speed) through the shared change endpoint.
func (c *Client) SetAC(ctx context.Context, nodeID, eoj string, setting ACSetting, value float64) (models.ControlResult, error) {
	return c.change(ctx, pathDeviceChange, map[string]any{
		"nodeId":      nodeID,
		"eoj":         eoj,
		"settingType": int(setting),
		"value":       strconv.Itoa(int(value)),
	})
}

// SetFloorHeaterLevel clamps level into [1,9] and sends the appliance's
// per-level code.
func (c *Client) SetFloorHeaterLevel(ctx context.Context, nodeID, eoj string, level int) (models.ControlResult, error) {
	return c.change(ctx, pathDeviceChange, map[string]any{
		"nodeId": nodeID, "eoj": eoj, "level": FloorHeaterLevelCode(level),
	})
}

// FloorHeaterLevelCode maps a heater level to the code the appliance
// expects: levels 1..9 encode as 0x31..0x39, out-of-range input clamps.
func FloorHeaterLevelCode(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}
	return fmt.Sprintf("0x%02X", 0x30+level)
}

// ToggleBath flips bath water heating with a fixed command code; no
// current-state echo is required.
func (c *Client) ToggleBath(ctx context.Context) (models.ControlResult, error) {
	return c.change(ctx, pathEnefarm, map[string]any{"command": cmdBathAuto})
}

// ToggleGeneration flips fuel-cell power generation with a fixed command
// code.
func (c *Client) ToggleGeneration(ctx context.Context) (models.ControlResult, error) {
	return c.change(ctx, pathEnefarm, map[string]any{"command": cmdGenerateFlip})
}

// change resolves the session token, issues one control POST, and returns
// the appliance's parsed acknowledgment. A non-2xx response becomes the
// synthetic error result rather than a Go error so callers always see a
// uniform shape; only network-level failures surface as errors.
func (c *Client) change(ctx context.Context, path string, fields map[string]any) (models.ControlResult, error) {
	token, err := c.SessionToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"token": token}
	for k, v := range fields {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal control payload: %w", err)
	}

	resp, err := c.tr.Do(ctx, http.MethodPost, path, body, contentTypeJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return models.ErrorResult(resp.StatusCode), nil
	}

	var ack models.ControlResult
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode control ack: %w", err)
	}
	return ack, nil
}

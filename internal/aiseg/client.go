package aiseg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"

	"golang.org/x/sync/errgroup"
)

// Appliance page paths. The appliance addresses everything by page number;
// these are centralized here so a firmware remap is a one-file change.
const (
	pathRealtime = "/page/electricflow/111"

	pathTotalSolar    = "/page/graph/51111"
	pathTotalConsume  = "/page/graph/52111"
	pathTotalPurchase = "/page/graph/53111"
	pathTotalSold     = "/page/graph/54111"

	pathCircuitList  = "/page/setting/installation/734"
	pathCircuitGraph = "/page/graph/584"

	pathDeviceList   = "/page/devices/device"
	pathDeviceInfo   = "/page/devices/info"
	pathDeviceDetail = "/page/devices/detail"
	pathDeviceChange = "/page/devices/change"
	pathEnefarm      = "/page/devices/enefarm"
)

const contentTypeJSON = "application/json"

// sessionTokenTTL is how long a scraped device-session token is trusted
// before it is lazily refetched.
const sessionTokenTTL = time.Hour

// Client exposes the appliance's read and control operations on top of the
// digest transport. Safe for concurrent use; the session token is the only
// mutable state and sits behind its own mutex.
type Client struct {
	tr  *Transport
	log *logger.Logger

	tokenMu      sync.Mutex
	sessionToken string
	tokenFetched time.Time
}

// NewClient wraps tr with the appliance's domain operations.
func NewClient(tr *Transport, log *logger.Logger) *Client {
	return &Client{tr: tr, log: log}
}

// fetchPage GETs path and returns the response body as markup. Non-2xx
// responses are errors here; read endpoints have no use for error pages.
func (c *Client) fetchPage(ctx context.Context, path string) (string, error) {
	resp, err := c.tr.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("appliance returned %d for %s", resp.StatusCode, path)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// postJSON POSTs payload to path and decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", path, err)
	}
	resp, err := c.tr.Do(ctx, http.MethodPost, path, body, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("appliance returned %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// realtimePayload is the wire shape of the realtime power-flow endpoint.
// Numbers arrive as strings and are parsed leniently (default 0).
type realtimePayload struct {
	Generation  string `json:"generationCapacity"` // kW
	Consumption string `json:"usageCapacity"`      // kW
	Solar       string `json:"solarPower"`         // W
	Enefarm     string `json:"enefarmPower"`       // W
	Flow        string `json:"conditionFlow"`      // "sell" while exporting
	TopUsage    []struct {
		Name    string `json:"name"`
		Power   string `json:"power"`
		Display string `json:"display"` // "1" when shown on the appliance UI
	} `json:"topUsage"`
	Connect struct {
		EV      string `json:"ev"`
		Battery string `json:"battery"`
		Enefarm string `json:"enefarm"`
	} `json:"connect"`
}

// Realtime fetches the instantaneous power-flow snapshot.
func (c *Client) Realtime(ctx context.Context) (models.Realtime, error) {
	var raw realtimePayload
	if err := c.postJSON(ctx, pathRealtime, map[string]any{}, &raw); err != nil {
		return models.Realtime{}, err
	}

	rt := models.Realtime{
		GenerationKW:  lenientFloat(raw.Generation),
		ConsumptionKW: lenientFloat(raw.Consumption),
		SolarW:        lenientFloat(raw.Solar),
		FuelCellW:     lenientFloat(raw.Enefarm),
		Selling:       raw.Flow == "sell",
		TopConsumers:  []models.TopConsumer{},
		HasEV:         raw.Connect.EV == "1",
		HasBattery:    raw.Connect.Battery == "1",
		HasFuelCell:   raw.Connect.Enefarm == "1",
	}
	for _, u := range raw.TopUsage {
		if u.Display != "1" {
			continue
		}
		rt.TopConsumers = append(rt.TopConsumers, models.TopConsumer{
			Name:   u.Name,
			PowerW: lenientFloat(u.Power),
		})
	}
	return rt, nil
}

// Totals scrapes today's accumulated kWh from the four graph pages
// concurrently. A page that fails (network or pattern miss) yields nil for
// that category only; partial success is the steady state when the
// appliance is under load.
func (c *Client) Totals(ctx context.Context) (models.TotalsReport, error) {
	var report models.TotalsReport

	targets := []struct {
		path string
		dst  **float64
		name string
	}{
		{pathTotalSolar, &report.SolarKWh, "solar"},
		{pathTotalConsume, &report.ConsumptionKWh, "consumption"},
		{pathTotalPurchase, &report.PurchasedKWh, "purchase"},
		{pathTotalSold, &report.SoldKWh, "sold"},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tgt := range targets {
		tgt := tgt
		g.Go(func() error {
			markup, err := c.fetchPage(gctx, tgt.path)
			if err != nil {
				c.log.Infow("totals scrape failed", "category", tgt.name, "err", err)
				return nil
			}
			v, ok := scrapeKWhValue(markup)
			if !ok {
				c.log.Infow("totals pattern miss", "category", tgt.name)
				return nil
			}
			*tgt.dst = &v
			return nil
		})
	}
	// Workers swallow their own failures; Wait only synchronizes.
	_ = g.Wait()
	return report, nil
}

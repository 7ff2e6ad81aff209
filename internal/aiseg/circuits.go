package aiseg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sync"

	"aiseg-dashboard/internal/models"
)

// circuitListMarker is the call whose argument embeds the circuit table as
// a JSON literal inside the settings page's inline script.
const circuitListMarker = "setCircuitInfo"

// btnTypeEnabled marks circuits the appliance actually measures; everything
// else is an unwired placeholder slot.
const btnTypeEnabled = "1"

// kwhFetchWindow caps concurrently outstanding per-circuit requests. The
// appliance's embedded HTTP server keels over under wide fan-out.
const kwhFetchWindow = 10

type circuitListPayload struct {
	ArrayCircuitNameList []struct {
		CircuitID   string `json:"circuitId"`
		CircuitName string `json:"circuitName"`
		BtnType     string `json:"btnType"`
	} `json:"arrayCircuitNameList"`
}

// CircuitList scrapes the id/name table of measured circuits from the
// installation settings page. The table is assumed stable for the process
// lifetime, so callers cache it indefinitely. A page whose script blocks
// all fail to parse yields an empty list, not an error.
func (c *Client) CircuitList(ctx context.Context) ([]models.Circuit, error) {
	markup, err := c.fetchPage(ctx, pathCircuitList)
	if err != nil {
		return nil, err
	}
	return parseCircuitList(markup), nil
}

// parseCircuitList is the pure markup-in, circuits-out half of CircuitList.
func parseCircuitList(markup string) []models.Circuit {
	circuits := []models.Circuit{}
	arg := extractCallArgument(markup, circuitListMarker)
	if arg == nil {
		return circuits
	}
	var payload circuitListPayload
	if err := json.Unmarshal(arg, &payload); err != nil {
		return circuits
	}
	for _, row := range payload.ArrayCircuitNameList {
		if row.BtnType != btnTypeEnabled {
			continue
		}
		circuits = append(circuits, models.Circuit{ID: row.CircuitID, Name: row.CircuitName})
	}
	return circuits
}

// CircuitKWh fetches today's kWh for every circuit, one request per circuit
// with the circuit id carried as a base64-encoded JSON query parameter.
// Requests run in batches of kwhFetchWindow, each batch fully drained
// before the next starts; a failed circuit degrades to a nil kWh for that
// circuit only. The returned slice always has one entry per input circuit,
// in order.
func (c *Client) CircuitKWh(ctx context.Context, circuits []models.Circuit) []models.Circuit {
	out := make([]models.Circuit, len(circuits))
	copy(out, circuits)

	for start := 0; start < len(out); start += kwhFetchWindow {
		end := start + kwhFetchWindow
		if end > len(out) {
			end = len(out)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i].KWhToday = c.circuitKWh(ctx, out[i].ID)
			}(i)
		}
		wg.Wait()
	}
	return out
}

func (c *Client) circuitKWh(ctx context.Context, circuitID string) *float64 {
	markup, err := c.fetchPage(ctx, circuitGraphPath(circuitID))
	if err != nil {
		c.log.Infow("circuit kwh fetch failed", "circuit", circuitID, "err", err)
		return nil
	}
	v, ok := scrapeKWhValue(markup)
	if !ok {
		c.log.Infow("circuit kwh pattern miss", "circuit", circuitID)
		return nil
	}
	return &v
}

// circuitGraphPath builds the per-circuit graph path. The appliance expects
// the selector as base64 over a small JSON object.
func circuitGraphPath(circuitID string) string {
	sel, _ := json.Marshal(map[string]string{"circuitid": circuitID, "graph": "day"})
	return pathCircuitGraph + "?data=" + url.QueryEscape(base64.StdEncoding.EncodeToString(sel))
}

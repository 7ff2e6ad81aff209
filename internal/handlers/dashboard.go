package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errRealtime = "failed to load realtime snapshot"
	errTotals   = "failed to load daily totals"
	errDevices  = "failed to load device status"
	errCircuits = "failed to load circuits"
)

// Centralized error logging and response. Upstream appliance failures map
// to 502: the dashboard itself is fine, the gateway to the appliance is not.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Realtime power flow
// @Tags         energy
// @Produce      json
// @Success      200  {object}  models.Realtime
// @Failure      502  {object}  map[string]string
// @Router       /api/realtime [get]
func (h *Handler) getRealtime(c *gin.Context) {
	rt, err := h.services.Realtime(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errRealtime, "realtime_fetch_failed", err)
		return
	}
	c.JSON(http.StatusOK, rt)
}

// @Summary      Today's energy totals
// @Description  Each category is independently failable and may be null.
// @Tags         energy
// @Produce      json
// @Success      200  {object}  models.TotalsReport
// @Failure      502  {object}  map[string]string
// @Router       /api/totals [get]
func (h *Handler) getTotals(c *gin.Context) {
	tr, err := h.services.Totals(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errTotals, "totals_fetch_failed", err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

// @Summary      Device status list
// @Tags         devices
// @Produce      json
// @Success      200  {array}   models.DeviceStatus
// @Failure      502  {object}  map[string]string
// @Router       /api/devices [get]
func (h *Handler) getDevices(c *gin.Context) {
	sts, err := h.services.Devices(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errDevices, "devices_fetch_failed", err)
		return
	}
	c.JSON(http.StatusOK, sts)
}

// @Summary      Circuits with today's kWh
// @Description  kwh_today is null for circuits whose last fetch failed.
// @Tags         energy
// @Produce      json
// @Success      200  {array}   models.Circuit
// @Failure      502  {object}  map[string]string
// @Router       /api/circuits [get]
func (h *Handler) getCircuits(c *gin.Context) {
	circuits, err := h.services.Circuits(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errCircuits, "circuits_fetch_failed", err)
		return
	}
	c.JSON(http.StatusOK, circuits)
}

package handlers

import (
	"errors"
	"net/http"

	"aiseg-dashboard/internal/models"
	"aiseg-dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errControl         = "failed to dispatch control command"
	errInvalidBodyPref = "invalid body: "
)

// @Summary      Dispatch a device control command
// @Description  Supported actions: toggleAC, toggleFH, toggleBath, toggleGenerate, setACMode, setACTemp, setACFan, setFHLevel.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body   models.ControlRequest  true  "Control payload"
// @Success      200   {object}  models.ControlResult
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/devices/control [post]
func (h *Handler) controlDevice(c *gin.Context) {
	var req models.ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	// Reject unknown actions before anything touches the appliance.
	if !req.Action.Known() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + string(req.Action)})
		return
	}

	res, err := h.services.Dispatch(c.Request.Context(), req)
	if errors.Is(err, service.ErrUnknownAction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errControl, "control_dispatch_failed", err, "action", req.Action)
		return
	}
	// res may itself carry {"result":"error"}; that is the appliance's
	// report and goes back verbatim with a 200.
	c.JSON(http.StatusOK, res)
}

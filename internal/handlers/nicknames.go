package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const errNickname = "failed to persist nickname"

// nicknameRequest sets (or with an empty label clears) one device nickname.
type nicknameRequest struct {
	Key   string `json:"key" binding:"required"` // "{nodeId}_{eoj}"
	Label string `json:"label"`
}

// @Summary      Nickname map
// @Tags         nicknames
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/nicknames [get]
func (h *Handler) getNicknames(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Nicknames())
}

// @Summary      Set a device nickname
// @Description  An empty label removes the nickname. The cached device list is re-annotated immediately.
// @Tags         nicknames
// @Accept       json
// @Produce      json
// @Param        body  body   nicknameRequest  true  "Nickname payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/nicknames [post]
func (h *Handler) setNickname(c *gin.Context) {
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.SetNickname(req.Key, req.Label); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errNickname, "nickname_persist_failed", err, "key", req.Key)
		return
	}
	c.JSON(http.StatusOK, h.services.Nicknames())
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spyglass-dev/spyglass/internal/store"
)

// Push accepts an inbound heartbeat for a passive monitor. The opaque
// token in the path is the only authentication this endpoint needs.
func (h *Handlers) Push(ctx *gin.Context) {
	token := ctx.Param("token")

	if token == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	monitor, err := h.Heartbeat.HandlePush(token, ctx.Query("msg"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Unknown heartbeat token"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true, "monitor_id": monitor.ID})
}

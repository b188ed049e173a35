package handlers

import (
	"github.com/gin-gonic/gin"
)

// WebSocket upgrades the connection and streams realtime pipeline events.
func (h *Handlers) WebSocket(ctx *gin.Context) {
	h.Hub.ServeWS(ctx.Writer, ctx.Request)
}

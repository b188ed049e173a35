package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spyglass-dev/spyglass/internal/monitors"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

func monitorID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("monitor_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Monitor ID"})
		return 0, false
	}
	return uint(id), true
}

// RunCheck executes a check immediately, outside the timer, and returns
// the handled result.
func (h *Handlers) RunCheck(ctx *gin.Context) {
	id, ok := monitorID(ctx)
	if !ok {
		return
	}

	result, err := h.Scheduler.RunMonitorCheck(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, monitors.ErrInvalidConfig) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	if result == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "Monitor was deleted while the check ran"})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// Schedule (re)arms the monitor's timer. The configuration surface calls
// this after creating or editing a monitor.
func (h *Handlers) Schedule(ctx *gin.Context) {
	id, ok := monitorID(ctx)
	if !ok {
		return
	}

	monitor, err := h.Store.GetMonitor(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitor"})
		}
		return
	}

	armed := h.Scheduler.ScheduleMonitor(*monitor)
	ctx.JSON(http.StatusOK, gin.H{"scheduled": armed})
}

// Cancel clears the monitor's timer. Idempotent; an in-flight check still
// completes.
func (h *Handlers) Cancel(ctx *gin.Context) {
	id, ok := monitorID(ctx)
	if !ok {
		return
	}

	h.Scheduler.CancelMonitor(id)
	ctx.Status(http.StatusNoContent)
}

type setIncidentStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// SetIncidentStatus is the manual override path: operators can move the
// active incident to INVESTIGATING, MITIGATED or RESOLVED.
func (h *Handlers) SetIncidentStatus(ctx *gin.Context) {
	id, ok := monitorID(ctx)
	if !ok {
		return
	}

	var req setIncidentStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	monitor, err := h.Store.GetMonitor(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Monitor not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve monitor"})
		}
		return
	}

	ref := types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
	incident, err := h.Incidents.SetStatus(ref, req.Status, req.Note)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, incident)
}

package handlers

import (
	"net/http"
	"strconv"

	"proxy-router-platform/internal/repository"
	"proxy-router-platform/internal/service/failover"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultEventLimit bounds event listings when no limit is given.
const defaultEventLimit = 50

// FailoverHandler handles failover management endpoints.
type FailoverHandler struct {
	controller *failover.Controller
	events     *repository.FailoverEventRepository
	logger     *zap.Logger
}

// NewFailoverHandler creates a new failover handler.
func NewFailoverHandler(controller *failover.Controller, events *repository.FailoverEventRepository, logger *zap.Logger) *FailoverHandler {
	return &FailoverHandler{
		controller: controller,
		events:     events,
		logger:     logger,
	}
}

// Trigger starts a manual failover for an account.
func (h *FailoverHandler) Trigger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	event, err := h.controller.TriggerManualFailover(c.Request.Context(), id, req.Reason)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, event)
}

// Recover manually recovers a failed-over account.
func (h *FailoverHandler) Recover(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.controller.ManualRecovery(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": id})
}

// Active lists accounts with active failovers.
func (h *FailoverHandler) Active(c *gin.Context) {
	active := h.controller.ActiveFailovers()
	out := make([]gin.H, 0, len(active))
	for id, at := range active {
		out = append(out, gin.H{"account_id": id, "triggered_at": at})
	}

	c.JSON(http.StatusOK, out)
}

// ListEvents returns recent failover events across all accounts.
func (h *FailoverHandler) ListEvents(c *gin.Context) {
	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.events.GetRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, events)
}

// ListAccountEvents returns recent failover events for one account.
func (h *FailoverHandler) ListAccountEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	limit := defaultEventLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.events.GetByAccount(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, events)
}

package handlers

import (
	"net/http"

	"proxy-router-platform/internal/service/health"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HealthHandler handles account health endpoints.
type HealthHandler struct {
	assessor *health.Assessor
	logger   *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(assessor *health.Assessor, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		assessor: assessor,
		logger:   logger,
	}
}

// GetSummary returns the aggregate health of all assessed accounts.
func (h *HealthHandler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.assessor.CurrentSummary())
}

// GetAccountsHealth returns the latest result for every assessed account.
func (h *HealthHandler) GetAccountsHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.assessor.LatestResults())
}

// CheckAccount probes a single account and returns the fresh result.
func (h *HealthHandler) CheckAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := h.assessor.Probe(c.Request.Context(), id)
	c.JSON(http.StatusOK, result)
}

// GetAccountHistory returns recent results for one account.
func (h *HealthHandler) GetAccountHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	c.JSON(http.StatusOK, h.assessor.History(id))
}

// RunCycle triggers an immediate assessment of all enabled accounts.
func (h *HealthHandler) RunCycle(c *gin.Context) {
	results, err := h.assessor.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": h.assessor.Summarize(results),
		"results": results,
	})
}

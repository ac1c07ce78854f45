package handlers

import (
	"errors"
	"net/http"

	"proxy-router-platform/internal/models"
	"proxy-router-platform/internal/repository"
	"proxy-router-platform/internal/service/router"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoutingHandler handles routing decisions and rule management.
type RoutingHandler struct {
	router       *router.Router
	rules        *repository.RoutingRuleRepository
	modelConfigs *repository.ModelConfigRepository
	logger       *zap.Logger
}

// NewRoutingHandler creates a new routing handler.
func NewRoutingHandler(
	r *router.Router,
	rules *repository.RoutingRuleRepository,
	modelConfigs *repository.ModelConfigRepository,
	logger *zap.Logger,
) *RoutingHandler {
	return &RoutingHandler{
		router:       r,
		rules:        rules,
		modelConfigs: modelConfigs,
		logger:       logger,
	}
}

// Route returns a routing decision for the request without executing it.
func (h *RoutingHandler) Route(c *gin.Context) {
	var req router.RequestContext
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MediaType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media_type is required"})
		return
	}

	decision, err := h.router.Route(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, router.ErrNoCandidates) || errors.Is(err, router.ErrNoHealthyCandidates) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, decision)
}

// CreateRule adds a routing rule.
func (h *RoutingHandler) CreateRule(c *gin.Context) {
	var rule models.RoutingRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rule.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if rule.Action == "" {
		rule.Action = models.ActionRoute
	}

	if err := h.rules.Create(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRules returns all routing rules in priority order.
func (h *RoutingHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rules)
}

// UpdateRule modifies a routing rule.
func (h *RoutingHandler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	rule, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	if err := c.ShouldBindJSON(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = id

	if err := h.rules.Update(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule removes a routing rule.
func (h *RoutingHandler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// CreateModelConfig adds a model binding for an account.
func (h *RoutingHandler) CreateModelConfig(c *gin.Context) {
	var mc models.ModelConfig
	if err := c.ShouldBindJSON(&mc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if mc.ModelName == "" || mc.MediaType == "" || mc.AccountID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model_name, media_type and account_id are required"})
		return
	}

	if err := h.modelConfigs.Create(c.Request.Context(), &mc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, mc)
}

// ListModelConfigs returns all model bindings.
func (h *RoutingHandler) ListModelConfigs(c *gin.Context) {
	configs, err := h.modelConfigs.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, configs)
}

// UpdateModelConfig modifies a model binding.
func (h *RoutingHandler) UpdateModelConfig(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	mc, err := h.modelConfigs.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model config not found"})
		return
	}

	if err := c.ShouldBindJSON(mc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mc.ID = id

	if err := h.modelConfigs.Update(c.Request.Context(), mc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, mc)
}

// DeleteModelConfig removes a model binding.
func (h *RoutingHandler) DeleteModelConfig(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.modelConfigs.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

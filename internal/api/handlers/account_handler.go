// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"proxy-router-platform/internal/crypto"
	"proxy-router-platform/internal/models"
	"proxy-router-platform/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountHandler handles proxy account management endpoints.
type AccountHandler struct {
	accounts  *repository.AccountRepository
	encryptor *crypto.Encryptor
	logger    *zap.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(accounts *repository.AccountRepository, encryptor *crypto.Encryptor, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		encryptor: encryptor,
		logger:    logger,
	}
}

// CreateAccountRequest is the payload for creating a proxy account.
type CreateAccountRequest struct {
	Name         string              `json:"name" binding:"required"`
	Provider     string              `json:"provider" binding:"required"`
	Credentials  string              `json:"credentials" binding:"required"`
	BaseURL      string              `json:"base_url"`
	Region       string              `json:"region"`
	Priority     *int                `json:"priority"`
	Capabilities models.Capabilities `json:"capabilities"`
}

// Create registers a new proxy account. Credentials are encrypted at rest.
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	encrypted, err := h.encryptor.Encrypt(req.Credentials)
	if err != nil {
		h.logger.Error("failed to encrypt credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encrypt credentials"})
		return
	}

	account := &models.ProxyAccount{
		Name:                 req.Name,
		Provider:             req.Provider,
		EncryptedCredentials: encrypted,
		BaseURL:              req.BaseURL,
		Region:               req.Region,
		Priority:             50,
		Enabled:              true,
		HealthStatus:         models.HealthUnknown,
		Capabilities:         req.Capabilities,
	}
	if req.Priority != nil {
		account.Priority = *req.Priority
	}

	if err := h.accounts.Create(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, account)
}

// List returns all accounts, optionally filtered by provider or enabled state.
func (h *AccountHandler) List(c *gin.Context) {
	filter := repository.AccountFilter{Provider: c.Query("provider")}
	if v := c.Query("enabled"); v != "" {
		enabled := v == "true"
		filter.Enabled = &enabled
	}

	accounts, err := h.accounts.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// Get returns a single account by ID.
func (h *AccountHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	c.JSON(http.StatusOK, account)
}

// UpdateAccountRequest is the payload for updating a proxy account.
type UpdateAccountRequest struct {
	Name         *string              `json:"name"`
	Credentials  *string              `json:"credentials"`
	BaseURL      *string              `json:"base_url"`
	Region       *string              `json:"region"`
	Priority     *int                 `json:"priority"`
	Capabilities *models.Capabilities `json:"capabilities"`
}

// Update modifies an existing account.
func (h *AccountHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Credentials != nil {
		encrypted, err := h.encryptor.Encrypt(*req.Credentials)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encrypt credentials"})
			return
		}
		account.EncryptedCredentials = encrypted
	}
	if req.BaseURL != nil {
		account.BaseURL = *req.BaseURL
	}
	if req.Region != nil {
		account.Region = *req.Region
	}
	if req.Priority != nil {
		account.Priority = *req.Priority
	}
	if req.Capabilities != nil {
		account.Capabilities = *req.Capabilities
	}

	if err := h.accounts.Update(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, account)
}

// SetEnabled flips routing-pool membership for an account.
func (h *AccountHandler) SetEnabled(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accounts.SetEnabled(c.Request.Context(), id, *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": *req.Enabled})
}

// Delete removes an account.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.accounts.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

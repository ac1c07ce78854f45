package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"proxy-router-platform/internal/clock"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/models"
	"proxy-router-platform/internal/service/health"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticAccountStore struct {
	accounts map[uuid.UUID]*models.ProxyAccount
}

func (s *staticAccountStore) ListEnabled(ctx context.Context) ([]models.ProxyAccount, error) {
	var out []models.ProxyAccount
	for _, a := range s.accounts {
		if a.Enabled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *staticAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ProxyAccount, error) {
	if a, ok := s.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, errors.New("account not found")
}

func (s *staticAccountStore) UpdateHealth(ctx context.Context, id uuid.UUID, status models.HealthStatus, checkedAt time.Time) error {
	return nil
}

func newTestAssessor(store health.AccountStore) *health.Assessor {
	cfg := config.HealthCheckConfig{
		Enabled:        true,
		Interval:       time.Minute,
		Timeout:        10 * time.Second,
		AlertThreshold: 0.8,
	}
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return health.NewAssessor(store, nil, clk, cfg, nil, zap.NewNop())
}

func TestHealthSummaryEndpoint(t *testing.T) {
	id := uuid.New()
	store := &staticAccountStore{accounts: map[uuid.UUID]*models.ProxyAccount{
		id: {
			BaseModel: models.BaseModel{ID: id},
			Name:      "acct",
			Provider:  "openai",
			Enabled:   true,
			Counters: models.PerformanceCounters{
				TotalRequests:      100,
				SuccessfulRequests: 98,
				AvgResponseTimeMs:  400,
			},
			LastHealthCheckAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	assessor := newTestAssessor(store)
	_, err := assessor.RunCycle(context.Background())
	require.NoError(t, err)

	handler := NewHealthHandler(assessor, zap.NewNop())
	router := gin.New()
	router.GET("/health/summary", handler.GetSummary)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/summary", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var summary health.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Healthy)
	assert.Equal(t, 100, summary.OverallHealth)
}

func TestHealthCheckAccountEndpoint(t *testing.T) {
	id := uuid.New()
	store := &staticAccountStore{accounts: map[uuid.UUID]*models.ProxyAccount{
		id: {
			BaseModel: models.BaseModel{ID: id},
			Name:      "acct",
			Provider:  "openai",
			Enabled:   true,
		},
	}}
	handler := NewHealthHandler(newTestAssessor(store), zap.NewNop())
	router := gin.New()
	router.GET("/health/accounts/:id", handler.CheckAccount)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/accounts/"+id.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result health.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, id, result.AccountID)
	assert.False(t, result.IsHealthy)
	assert.Contains(t, result.Issues, "insufficient data")
}

func TestHealthCheckAccountInvalidID(t *testing.T) {
	handler := NewHealthHandler(newTestAssessor(&staticAccountStore{}), zap.NewNop())
	router := gin.New()
	router.GET("/health/accounts/:id", handler.CheckAccount)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/accounts/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAccountValidation(t *testing.T) {
	router := gin.New()
	router.POST("/accounts", func(c *gin.Context) {
		var req CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"name": req.Name})
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid request",
			body:       `{"name":"primary","provider":"openai","credentials":"sk-test"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing provider",
			body:       `{"name":"primary","credentials":"sk-test"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing credentials",
			body:       `{"name":"primary","provider":"openai"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/accounts", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRouteRequestValidation(t *testing.T) {
	router := gin.New()
	router.POST("/route", func(c *gin.Context) {
		var req struct {
			MediaType models.MediaType `json:"media_type"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.MediaType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "media_type is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"media_type": req.MediaType})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/route", strings.NewReader(`{"prompt":"a cat"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/route", strings.NewReader(`{"media_type":"image","prompt":"a cat"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

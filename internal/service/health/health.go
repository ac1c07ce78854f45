// Package health assesses proxy account reliability from recorded
// performance counters.
package health

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"proxy-router-platform/internal/clock"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/metrics"
	"proxy-router-platform/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// historyLimit bounds the in-memory per-account result history.
const historyLimit = 50

// maxConcurrentProbes caps the fan-out of one assessment cycle.
const maxConcurrentProbes = 16

// AccountStore is the slice of the account store the assessor consumes.
type AccountStore interface {
	ListEnabled(ctx context.Context) ([]models.ProxyAccount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProxyAccount, error)
	UpdateHealth(ctx context.Context, id uuid.UUID, status models.HealthStatus, checkedAt time.Time) error
}

// Check is the classification of one account's counters.
type Check struct {
	IsHealthy      bool                `json:"is_healthy"`
	Status         models.HealthStatus `json:"status"`
	Issues         []string            `json:"issues,omitempty"`
	SuccessRate    float64             `json:"success_rate"`
	ResponseTimeMs float64             `json:"response_time_ms"`
	Uptime         int                 `json:"uptime"`
}

// Result is the outcome of probing one account.
type Result struct {
	AccountID   uuid.UUID `json:"account_id"`
	AccountName string    `json:"account_name"`
	Provider    string    `json:"provider"`
	Check
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CheckedAt           time.Time `json:"checked_at"`
}

// AlertBuckets groups results by alert level.
type AlertBuckets struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// Summary aggregates one cycle's results.
type Summary struct {
	OverallHealth     int          `json:"overall_health"`
	Total             int          `json:"total"`
	Healthy           int          `json:"healthy"`
	Degraded          int          `json:"degraded"`
	Unhealthy         int          `json:"unhealthy"`
	Unknown           int          `json:"unknown"`
	AvgResponseTimeMs float64      `json:"avg_response_time_ms"`
	Alerts            AlertBuckets `json:"alerts"`
}

// Assessor runs periodic health cycles over all enabled accounts and keeps
// the latest result per account for the router and failover controller.
type Assessor struct {
	store   AccountStore
	cache   *ResultCache
	clk     clock.Clock
	cfg     config.HealthCheckConfig
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	latest  map[uuid.UUID]Result
	history map[uuid.UUID][]Result

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewAssessor creates a new health assessor.
func NewAssessor(
	store AccountStore,
	cache *ResultCache,
	clk clock.Clock,
	cfg config.HealthCheckConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Assessor {
	return &Assessor{
		store:   store,
		cache:   cache,
		clk:     clk,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		latest:  make(map[uuid.UUID]Result),
		history: make(map[uuid.UUID][]Result),
		stopCh:  make(chan struct{}),
	}
}

// Classify converts an account's recorded counters into a health
// classification. It is a pure function of the account and the current time.
func (a *Assessor) Classify(account *models.ProxyAccount) Check {
	c := account.Counters
	successRate := c.SuccessRate()

	isHealthy := successRate >= a.cfg.AlertThreshold &&
		c.AvgResponseTimeMs <= 10000 &&
		c.TotalRequests >= 10

	var status models.HealthStatus
	switch {
	case isHealthy && successRate >= 0.95:
		status = models.HealthHealthy
	case isHealthy && successRate >= 0.8:
		status = models.HealthDegraded
	case !isHealthy:
		status = models.HealthUnhealthy
	default:
		status = models.HealthUnknown
	}

	var issues []string
	if successRate < 0.8 {
		issues = append(issues, "low success rate")
	} else if successRate < 0.95 {
		issues = append(issues, "moderate success rate")
	}
	if c.AvgResponseTimeMs > 5000 {
		issues = append(issues, "high response time")
	} else if c.AvgResponseTimeMs > 2000 {
		issues = append(issues, "moderate response time")
	}
	if c.TotalRequests < 10 {
		issues = append(issues, "insufficient data")
	}
	if !account.Enabled {
		issues = append(issues, "proxy disabled")
	}

	lastUpdate := account.LastHealthCheckAt
	if lastUpdate.IsZero() {
		lastUpdate = account.UpdatedAt
	}
	if !lastUpdate.IsZero() {
		age := a.clk.Now().Sub(lastUpdate)
		if age > 24*time.Hour {
			issues = append(issues, "stale data")
		} else if age > time.Hour {
			issues = append(issues, "outdated data")
		}
	}

	uptime := 100
	if c.TotalRequests > 0 {
		uptime = int(math.Round(successRate * 100))
	}

	return Check{
		IsHealthy:      isHealthy,
		Status:         status,
		Issues:         issues,
		SuccessRate:    successRate,
		ResponseTimeMs: c.AvgResponseTimeMs,
		Uptime:         uptime,
	}
}

// Probe checks a single account. Store errors are converted into a synthetic
// unhealthy result rather than propagated, so callers always get a result.
func (a *Assessor) Probe(ctx context.Context, id uuid.UUID) Result {
	probeCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	account, err := a.store.GetByID(probeCtx, id)
	if err != nil {
		result := a.syntheticFailure(id, err)
		a.record(result)
		return result
	}

	result := Result{
		AccountID:           account.ID,
		AccountName:         account.Name,
		Provider:            account.Provider,
		Check:               a.Classify(account),
		ConsecutiveFailures: account.Counters.ConsecutiveFailures,
		CheckedAt:           a.clk.Now(),
	}

	// Write-back failures are logged, not raised; health state is
	// self-correcting on the next cycle.
	if err := a.store.UpdateHealth(probeCtx, account.ID, result.Status, result.CheckedAt); err != nil {
		a.logger.Warn("failed to persist health status",
			zap.String("account_id", account.ID.String()),
			zap.Error(err))
	}

	a.record(result)
	return result
}

// RunCycle probes every enabled account concurrently and returns one result
// per account. A failing probe never aborts the cycle for the others.
func (a *Assessor) RunCycle(ctx context.Context) ([]Result, error) {
	start := a.clk.Now()

	accounts, err := a.store.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled accounts: %w", err)
	}

	results := make([]Result, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, account := range accounts {
		g.Go(func() error {
			results[i] = a.Probe(gctx, account.ID)
			return nil
		})
	}
	_ = g.Wait()

	if a.metrics != nil {
		a.metrics.HealthCycleDuration.Observe(a.clk.Now().Sub(start).Seconds())
	}
	a.logger.Debug("health cycle complete",
		zap.Int("accounts", len(results)),
		zap.Duration("elapsed", a.clk.Now().Sub(start)))

	return results, nil
}

// Summarize aggregates a cycle's results.
func (a *Assessor) Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	if len(results) == 0 {
		s.OverallHealth = 100
		return s
	}

	var totalResponse float64
	for _, r := range results {
		switch r.Status {
		case models.HealthHealthy:
			s.Healthy++
		case models.HealthDegraded:
			s.Degraded++
		case models.HealthUnhealthy:
			s.Unhealthy++
		default:
			s.Unknown++
		}
		totalResponse += r.ResponseTimeMs
	}

	s.OverallHealth = int(math.Round((float64(s.Healthy) + float64(s.Degraded)*0.5) / float64(s.Total) * 100))
	s.AvgResponseTimeMs = totalResponse / float64(s.Total)
	s.Alerts = AlertBuckets{
		Critical: s.Unhealthy,
		Warning:  s.Degraded,
		Info:     s.Healthy,
	}
	return s
}

// CurrentSummary summarizes the latest known results.
func (a *Assessor) CurrentSummary() Summary {
	return a.Summarize(a.LatestResults())
}

// Latest returns the most recent result for an account.
func (a *Assessor) Latest(id uuid.UUID) (Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.latest[id]
	return r, ok
}

// LatestResults returns the most recent result for every probed account.
func (a *Assessor) LatestResults() []Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	results := make([]Result, 0, len(a.latest))
	for _, r := range a.latest {
		results = append(results, r)
	}
	return results
}

// History returns the bounded result history for an account, oldest first.
func (a *Assessor) History(id uuid.UUID) []Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	history := a.history[id]
	out := make([]Result, len(history))
	copy(out, history)
	return out
}

// Start runs assessment cycles on the configured interval until Stop or
// context cancellation.
func (a *Assessor) Start(ctx context.Context) {
	ticker := a.clk.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.logger.Info("health assessor started", zap.Duration("interval", a.cfg.Interval))

	for {
		select {
		case <-ticker.C():
			if _, err := a.RunCycle(ctx); err != nil {
				a.logger.Error("health cycle failed", zap.Error(err))
			}
		case <-a.stopCh:
			a.logger.Info("health assessor stopped")
			return
		case <-ctx.Done():
			a.logger.Info("health assessor context cancelled")
			return
		}
	}
}

// Stop stops the assessment loop.
func (a *Assessor) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// record stores a result in the latest map, the bounded history and the
// shared TTL cache, and counts it.
func (a *Assessor) record(result Result) {
	a.mu.Lock()
	a.latest[result.AccountID] = result
	history := append(a.history[result.AccountID], result)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	a.history[result.AccountID] = history
	a.mu.Unlock()

	if a.cache != nil {
		a.cache.Set(result)
	}
	if a.metrics != nil {
		a.metrics.HealthChecksTotal.WithLabelValues(string(result.Status)).Inc()
	}
}

// syntheticFailure builds the unhealthy result reported when a probe itself
// fails.
func (a *Assessor) syntheticFailure(id uuid.UUID, err error) Result {
	return Result{
		AccountID: id,
		Check: Check{
			IsHealthy: false,
			Status:    models.HealthUnhealthy,
			Issues:    []string{fmt.Sprintf("Health check failed: %s", err.Error())},
		},
		CheckedAt: a.clk.Now(),
	}
}

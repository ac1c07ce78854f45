// Package failover watches account health, pulls breached accounts out of
// the routing pool, and retries request execution across alternates.
package failover

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"proxy-router-platform/internal/clock"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/metrics"
	"proxy-router-platform/internal/models"
	"proxy-router-platform/internal/service/health"
	"proxy-router-platform/internal/service/router"
)

// successRateFloor is the success rate below which an account breaches.
const successRateFloor = 0.5

// uptimeFloor is the uptime percentage below which an account breaches.
const uptimeFloor = 50

// HealthSource supplies the controller with health assessments.
type HealthSource interface {
	LatestResults() []health.Result
	Probe(ctx context.Context, accountID uuid.UUID) health.Result
}

// AccountStore is the account surface the controller mutates.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProxyAccount, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	RecordSuccess(ctx context.Context, id uuid.UUID, responseTimeMs float64) error
	RecordFailure(ctx context.Context, id uuid.UUID, responseTimeMs float64, reason string) error
}

// EventStore persists failover events.
type EventStore interface {
	Append(ctx context.Context, event *models.FailoverEvent) error
	GetByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.FailoverEvent, error)
	GetRecent(ctx context.Context, limit int) ([]models.FailoverEvent, error)
}

// RoutePlanner picks accounts for execution attempts.
type RoutePlanner interface {
	Route(ctx context.Context, req router.RequestContext) (*router.RoutingDecision, error)
}

// Executor performs one request attempt against a concrete account.
type Executor func(ctx context.Context, account *models.ProxyAccount, model *models.ModelConfig) (any, error)

// AlertFunc receives events that warrant operator attention.
type AlertFunc func(event *models.FailoverEvent)

// ExecutionResult reports the outcome of ExecuteWithFailover.
type ExecutionResult struct {
	Success         bool                   `json:"success"`
	OriginalAccount *models.ProxyAccount   `json:"original_account"`
	FinalAccount    *models.ProxyAccount   `json:"final_account,omitempty"`
	Attempts        int                    `json:"attempts"`
	TotalDurationMs float64                `json:"total_duration_ms"`
	Events          []models.FailoverEvent `json:"events,omitempty"`
	Result          any                    `json:"result,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// Controller monitors health results for breach conditions, disables
// breached accounts, and probes them periodically until they recover.
type Controller struct {
	accounts AccountStore
	events   EventStore
	source   HealthSource
	planner  RoutePlanner
	clk      clock.Clock
	cfg      config.FailoverConfig
	onAlert  AlertFunc
	metrics  *metrics.Metrics
	logger   *zap.Logger

	activeFailovers *xsync.Map[uuid.UUID, time.Time]
	recoveryTimers  *xsync.Map[uuid.UUID, clock.Timer]

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewController creates a failover controller.
func NewController(
	accounts AccountStore,
	events EventStore,
	source HealthSource,
	planner RoutePlanner,
	clk clock.Clock,
	cfg config.FailoverConfig,
	onAlert AlertFunc,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		accounts:        accounts,
		events:          events,
		source:          source,
		planner:         planner,
		clk:             clk,
		cfg:             cfg,
		onAlert:         onAlert,
		metrics:         m,
		logger:          logger,
		activeFailovers: xsync.NewMap[uuid.UUID, time.Time](),
		recoveryTimers:  xsync.NewMap[uuid.UUID, clock.Timer](),
		stopCh:          make(chan struct{}),
	}
}

// CheckFailoverConditions returns the breached conditions for a health
// result and the severity derived from the breach count.
func (c *Controller) CheckFailoverConditions(res health.Result) ([]string, models.Severity) {
	var breaches []string
	if res.Status == models.HealthUnhealthy {
		breaches = append(breaches, "health status is unhealthy")
	}
	if res.SuccessRate < successRateFloor {
		breaches = append(breaches, fmt.Sprintf("success rate %.0f%% below %.0f%%", res.SuccessRate*100, successRateFloor*100))
	}
	if res.ConsecutiveFailures >= c.cfg.ConsecutiveFailureLimit {
		breaches = append(breaches, fmt.Sprintf("%d consecutive failures", res.ConsecutiveFailures))
	}
	if res.Uptime < uptimeFloor {
		breaches = append(breaches, fmt.Sprintf("uptime %d%% below %d%%", res.Uptime, uptimeFloor))
	}

	var severity models.Severity
	switch {
	case len(breaches) >= 3:
		severity = models.SeverityCritical
	case len(breaches) == 2:
		severity = models.SeverityHigh
	case len(breaches) == 1:
		severity = models.SeverityMedium
	}
	return breaches, severity
}

// RunMonitorCycle inspects the latest health results and triggers an
// automatic failover for every breached account not already failed over.
func (c *Controller) RunMonitorCycle(ctx context.Context) {
	for _, res := range c.source.LatestResults() {
		breaches, severity := c.CheckFailoverConditions(res)
		if len(breaches) == 0 {
			continue
		}
		if _, loaded := c.activeFailovers.LoadOrStore(res.AccountID, c.clk.Now()); loaded {
			continue
		}
		c.failOver(ctx, res, breaches, severity)
	}
}

// failOver disables the account, records the event and schedules recovery.
// The caller has already claimed the activeFailovers slot.
func (c *Controller) failOver(ctx context.Context, res health.Result, breaches []string, severity models.Severity) {
	if err := c.accounts.SetEnabled(ctx, res.AccountID, false); err != nil {
		c.activeFailovers.Delete(res.AccountID)
		c.logger.Error("failed to disable account for failover",
			zap.String("account_id", res.AccountID.String()),
			zap.Error(err))
		return
	}

	event := &models.FailoverEvent{
		AccountID: res.AccountID,
		EventType: models.EventAutoFailover,
		Reason:    strings.Join(breaches, "; "),
		Severity:  severity,
		Details:   breachDetails(res, breaches),
	}
	if err := c.events.Append(ctx, event); err != nil {
		c.logger.Error("failed to record failover event", zap.Error(err))
	}
	if c.onAlert != nil {
		c.onAlert(event)
	}
	if c.metrics != nil {
		c.metrics.FailoversTotal.WithLabelValues("auto").Inc()
		c.metrics.ActiveFailovers.Set(float64(c.activeFailovers.Size()))
	}
	c.logger.Warn("account failed over",
		zap.String("account", res.AccountName),
		zap.String("severity", string(severity)),
		zap.Strings("breaches", breaches))

	c.scheduleRecovery(res.AccountID)
}

// scheduleRecovery arms a timer that probes the account after the recovery
// interval. A failed probe re-arms the timer without recording an event.
func (c *Controller) scheduleRecovery(accountID uuid.UUID) {
	timer := c.clk.AfterFunc(c.cfg.RecoveryInterval, func() {
		c.attemptRecovery(accountID)
	})
	if old, loaded := c.recoveryTimers.LoadAndStore(accountID, timer); loaded {
		old.Stop()
	}
}

func (c *Controller) attemptRecovery(accountID uuid.UUID) {
	select {
	case <-c.stopCh:
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res := c.source.Probe(ctx, accountID)
	if !res.IsHealthy {
		if timer, ok := c.recoveryTimers.Load(accountID); ok {
			timer.Reset(c.cfg.RecoveryInterval)
		}
		c.logger.Info("recovery probe failed, rescheduling",
			zap.String("account_id", accountID.String()),
			zap.String("status", string(res.Status)))
		return
	}
	c.recover(ctx, accountID, "auto")
}

// recover re-enables the account and records a resolved recovery event.
func (c *Controller) recover(ctx context.Context, accountID uuid.UUID, method string) {
	if err := c.accounts.SetEnabled(ctx, accountID, true); err != nil {
		c.logger.Error("failed to re-enable account",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		return
	}

	if timer, ok := c.recoveryTimers.LoadAndDelete(accountID); ok {
		timer.Stop()
	}
	c.activeFailovers.Delete(accountID)

	now := c.clk.Now()
	event := &models.FailoverEvent{
		AccountID:        accountID,
		EventType:        models.EventRecovery,
		Reason:           fmt.Sprintf("account recovered (%s)", method),
		Severity:         models.SeverityLow,
		Resolved:         true,
		ResolvedAt:       &now,
		ResolutionMethod: method,
	}
	if err := c.events.Append(ctx, event); err != nil {
		c.logger.Error("failed to record recovery event", zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.RecoveriesTotal.WithLabelValues(method).Inc()
		c.metrics.ActiveFailovers.Set(float64(c.activeFailovers.Size()))
	}
	c.logger.Info("account recovered",
		zap.String("account_id", accountID.String()),
		zap.String("method", method))
}

// TriggerManualFailover disables an account on operator request. The
// account still goes through periodic recovery probes unless recovered
// manually first.
func (c *Controller) TriggerManualFailover(ctx context.Context, accountID uuid.UUID, reason string) (*models.FailoverEvent, error) {
	account, err := c.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("account not found: %w", err)
	}
	if _, loaded := c.activeFailovers.LoadOrStore(accountID, c.clk.Now()); loaded {
		return nil, fmt.Errorf("account %s already failed over", account.Name)
	}
	if err := c.accounts.SetEnabled(ctx, accountID, false); err != nil {
		c.activeFailovers.Delete(accountID)
		return nil, fmt.Errorf("failed to disable account: %w", err)
	}

	if reason == "" {
		reason = "manual failover requested"
	}
	event := &models.FailoverEvent{
		AccountID: accountID,
		EventType: models.EventManualFailover,
		Reason:    reason,
		Severity:  models.SeverityMedium,
	}
	if err := c.events.Append(ctx, event); err != nil {
		c.logger.Error("failed to record manual failover event", zap.Error(err))
	}
	if c.onAlert != nil {
		c.onAlert(event)
	}
	if c.metrics != nil {
		c.metrics.FailoversTotal.WithLabelValues("manual").Inc()
		c.metrics.ActiveFailovers.Set(float64(c.activeFailovers.Size()))
	}
	c.scheduleRecovery(accountID)
	return event, nil
}

// ManualRecovery re-enables a failed-over account on operator request.
func (c *Controller) ManualRecovery(ctx context.Context, accountID uuid.UUID) error {
	if _, ok := c.activeFailovers.Load(accountID); !ok {
		return fmt.Errorf("account %s has no active failover", accountID)
	}
	c.recover(ctx, accountID, "manual")
	return nil
}

// IsActive reports whether the account currently has an active failover.
func (c *Controller) IsActive(accountID uuid.UUID) bool {
	_, ok := c.activeFailovers.Load(accountID)
	return ok
}

// ActiveFailovers returns the accounts with active failovers and when each
// was triggered.
func (c *Controller) ActiveFailovers() map[uuid.UUID]time.Time {
	out := make(map[uuid.UUID]time.Time, c.activeFailovers.Size())
	c.activeFailovers.Range(func(id uuid.UUID, at time.Time) bool {
		out[id] = at
		return true
	})
	return out
}

// ExecuteWithFailover routes the request and runs the executor, retrying on
// alternate accounts when an attempt fails. Accounts with active failovers
// are never retried against.
func (c *Controller) ExecuteWithFailover(ctx context.Context, req router.RequestContext, exec Executor) (*ExecutionResult, error) {
	decision, err := c.planner.Route(ctx, req)
	if err != nil {
		return nil, err
	}

	queue := make([]*models.ProxyAccount, 0, 1+len(decision.Alternates))
	queue = append(queue, decision.Account)
	for i := range decision.Alternates {
		if !c.IsActive(decision.Alternates[i].ID) {
			queue = append(queue, &decision.Alternates[i])
		}
	}
	if len(queue) > c.cfg.MaxRetries {
		queue = queue[:c.cfg.MaxRetries]
	}

	result := &ExecutionResult{OriginalAccount: decision.Account}
	start := c.clk.Now()
	var lastErr error

	for i, account := range queue {
		result.Attempts++
		if c.metrics != nil {
			c.metrics.ExecuteAttemptsTotal.Inc()
		}

		model := decision.Model
		if i > 0 {
			model = nil
		}
		attemptStart := c.clk.Now()
		out, attemptErr := c.runAttempt(ctx, account, model, exec)
		elapsedMs := float64(c.clk.Now().Sub(attemptStart)) / float64(time.Millisecond)

		if attemptErr == nil {
			if err := c.accounts.RecordSuccess(ctx, account.ID, elapsedMs); err != nil {
				c.logger.Warn("failed to record success", zap.Error(err))
			}
			result.Success = true
			result.FinalAccount = account
			result.Result = out
			result.TotalDurationMs = float64(c.clk.Now().Sub(start)) / float64(time.Millisecond)
			return result, nil
		}
		lastErr = attemptErr

		if err := c.accounts.RecordFailure(ctx, account.ID, elapsedMs, attemptErr.Error()); err != nil {
			c.logger.Warn("failed to record failure", zap.Error(err))
		}
		event := models.FailoverEvent{
			AccountID: account.ID,
			EventType: models.EventFailure,
			Reason:    attemptErr.Error(),
			Severity:  models.SeverityLow,
		}
		if err := c.events.Append(ctx, &event); err != nil {
			c.logger.Error("failed to record failure event", zap.Error(err))
		}
		result.Events = append(result.Events, event)
		c.logger.Warn("execution attempt failed",
			zap.String("account", account.Name),
			zap.Int("attempt", result.Attempts),
			zap.Error(attemptErr))

		if i < len(queue)-1 {
			if err := c.clk.Sleep(ctx, c.cfg.RetryDelay); err != nil {
				break
			}
		}
	}

	result.TotalDurationMs = float64(c.clk.Now().Sub(start)) / float64(time.Millisecond)
	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	return result, nil
}

// runAttempt executes one attempt bounded by the configured attempt timeout.
func (c *Controller) runAttempt(ctx context.Context, account *models.ProxyAccount, model *models.ModelConfig, exec Executor) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		out, err := exec(attemptCtx, account, model)
		ch <- outcome{result: out, err: err}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-attemptCtx.Done():
		return nil, fmt.Errorf("attempt timed out after %s: %w", c.cfg.AttemptTimeout, attemptCtx.Err())
	}
}

// Start runs the monitor loop until the context is cancelled or Stop is
// called.
func (c *Controller) Start(ctx context.Context) {
	if !c.cfg.Enabled {
		c.logger.Info("failover monitoring disabled")
		return
	}
	c.logger.Info("starting failover monitor",
		zap.Duration("interval", c.cfg.MonitorInterval))

	ticker := c.clk.NewTicker(c.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C():
			c.RunMonitorCycle(ctx)
		}
	}
}

// Stop halts the monitor loop and cancels all pending recovery timers.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.recoveryTimers.Range(func(id uuid.UUID, timer clock.Timer) bool {
			timer.Stop()
			c.recoveryTimers.Delete(id)
			return true
		})
	})
}

func breachDetails(res health.Result, breaches []string) datatypes.JSON {
	raw, err := json.Marshal(map[string]any{
		"breaches":             breaches,
		"success_rate":         res.SuccessRate,
		"uptime":               res.Uptime,
		"consecutive_failures": res.ConsecutiveFailures,
		"status":               res.Status,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

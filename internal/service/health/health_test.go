package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"proxy-router-platform/internal/clock"
	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/models"
)

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.ProxyAccount
	failIDs  map[uuid.UUID]error
	listErr  error
	writes   int
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		accounts: make(map[uuid.UUID]*models.ProxyAccount),
		failIDs:  make(map[uuid.UUID]error),
	}
}

func (s *fakeAccountStore) add(account *models.ProxyAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

func (s *fakeAccountStore) ListEnabled(ctx context.Context) ([]models.ProxyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ProxyAccount
	for _, a := range s.accounts {
		if a.Enabled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ProxyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failIDs[id]; ok {
		return nil, err
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.New("account not found")
	}
	copied := *account
	return &copied, nil
}

func (s *fakeAccountStore) UpdateHealth(ctx context.Context, id uuid.UUID, status models.HealthStatus, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if account, ok := s.accounts[id]; ok {
		account.HealthStatus = status
		account.LastHealthCheckAt = checkedAt
	}
	return nil
}

func testConfig() config.HealthCheckConfig {
	return config.HealthCheckConfig{
		Enabled:        true,
		Interval:       time.Minute,
		Timeout:        10 * time.Second,
		RetryCount:     3,
		AlertThreshold: 0.8,
	}
}

func newTestAssessor(store *fakeAccountStore, clk clock.Clock) *Assessor {
	return NewAssessor(store, nil, clk, testConfig(), nil, zap.NewNop())
}

func testAccount(now time.Time, total, successful int64, avgMs float64) *models.ProxyAccount {
	return &models.ProxyAccount{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Name:      "acct",
		Provider:  "openai",
		Enabled:   true,
		Counters: models.PerformanceCounters{
			TotalRequests:      total,
			SuccessfulRequests: successful,
			AvgResponseTimeMs:  avgMs,
		},
		LastHealthCheckAt: now,
	}
}

func TestClassifyHealthy(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	check := a.Classify(testAccount(clk.Now(), 100, 98, 500))

	assert.True(t, check.IsHealthy)
	assert.Equal(t, models.HealthHealthy, check.Status)
	assert.Empty(t, check.Issues)
	assert.InDelta(t, 0.98, check.SuccessRate, 1e-9)
	assert.Equal(t, 98, check.Uptime)
}

func TestClassifyDegraded(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	check := a.Classify(testAccount(clk.Now(), 100, 85, 500))

	assert.True(t, check.IsHealthy)
	assert.Equal(t, models.HealthDegraded, check.Status)
	assert.Contains(t, check.Issues, "moderate success rate")
}

func TestClassifyLowSuccessRate(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	check := a.Classify(testAccount(clk.Now(), 100, 50, 500))

	assert.False(t, check.IsHealthy)
	assert.Equal(t, models.HealthUnhealthy, check.Status)
	assert.Contains(t, check.Issues, "low success rate")
	assert.Equal(t, 50, check.Uptime)
}

func TestClassifySlowResponses(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	check := a.Classify(testAccount(clk.Now(), 100, 99, 12000))

	assert.False(t, check.IsHealthy)
	assert.Equal(t, models.HealthUnhealthy, check.Status)
	assert.Contains(t, check.Issues, "high response time")
}

func TestClassifyModerateResponseTime(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	check := a.Classify(testAccount(clk.Now(), 100, 99, 3000))

	assert.True(t, check.IsHealthy)
	assert.Contains(t, check.Issues, "moderate response time")
}

func TestClassifyNewAccountNeedsData(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	check := a.Classify(testAccount(clk.Now(), 0, 0, 0))

	// A new account gets the neutral 90% success rate but is still not
	// considered healthy until it has enough traffic.
	assert.False(t, check.IsHealthy)
	assert.InDelta(t, 0.9, check.SuccessRate, 1e-9)
	assert.Contains(t, check.Issues, "insufficient data")
	assert.Equal(t, 100, check.Uptime)
}

func TestClassifyDisabledAccount(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	account := testAccount(clk.Now(), 100, 98, 500)
	account.Enabled = false
	check := a.Classify(account)

	assert.Contains(t, check.Issues, "proxy disabled")
}

func TestClassifyStaleData(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	a := newTestAssessor(newFakeAccountStore(), clk)

	outdated := a.Classify(testAccount(now.Add(-2*time.Hour), 100, 98, 500))
	assert.Contains(t, outdated.Issues, "outdated data")

	stale := a.Classify(testAccount(now.Add(-25*time.Hour), 100, 98, 500))
	assert.Contains(t, stale.Issues, "stale data")
	assert.NotContains(t, stale.Issues, "outdated data")
}

func TestProbeRecordsResult(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeAccountStore()
	account := testAccount(clk.Now(), 100, 98, 500)
	store.add(account)
	a := newTestAssessor(store, clk)

	result := a.Probe(context.Background(), account.ID)

	assert.Equal(t, account.ID, result.AccountID)
	assert.Equal(t, "acct", result.AccountName)
	assert.True(t, result.IsHealthy)
	assert.Equal(t, clk.Now(), result.CheckedAt)

	latest, ok := a.Latest(account.ID)
	require.True(t, ok)
	assert.Equal(t, result, latest)
	assert.Equal(t, 1, store.writes)
}

func TestProbeStoreErrorYieldsSyntheticFailure(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeAccountStore()
	id := uuid.New()
	store.failIDs[id] = errors.New("connection refused")
	a := newTestAssessor(store, clk)

	result := a.Probe(context.Background(), id)

	assert.False(t, result.IsHealthy)
	assert.Equal(t, models.HealthUnhealthy, result.Status)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "Health check failed: connection refused", result.Issues[0])
}

func TestRunCycleIsolatesFailures(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeAccountStore()
	good := testAccount(clk.Now(), 100, 98, 500)
	bad := testAccount(clk.Now(), 100, 98, 500)
	store.add(good)
	store.add(bad)
	store.failIDs[bad.ID] = errors.New("timeout")
	a := newTestAssessor(store, clk)

	results, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	healthy := 0
	for _, r := range results {
		if r.IsHealthy {
			healthy++
		}
	}
	assert.Equal(t, 1, healthy)
}

func TestSummarize(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	results := []Result{
		{Check: Check{Status: models.HealthHealthy, ResponseTimeMs: 400}},
		{Check: Check{Status: models.HealthHealthy, ResponseTimeMs: 600}},
		{Check: Check{Status: models.HealthDegraded, ResponseTimeMs: 2000}},
		{Check: Check{Status: models.HealthUnhealthy, ResponseTimeMs: 9000}},
	}
	summary := a.Summarize(results)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Healthy)
	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, 1, summary.Unhealthy)
	assert.Equal(t, 63, summary.OverallHealth)
	assert.InDelta(t, 3000, summary.AvgResponseTimeMs, 1e-9)
	assert.Equal(t, AlertBuckets{Critical: 1, Warning: 1, Info: 2}, summary.Alerts)
}

func TestSummarizeEmpty(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	a := newTestAssessor(newFakeAccountStore(), clk)

	summary := a.Summarize(nil)
	assert.Equal(t, 100, summary.OverallHealth)
	assert.Equal(t, 0, summary.Total)
}

func TestHistoryIsBounded(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeAccountStore()
	account := testAccount(clk.Now(), 100, 98, 500)
	store.add(account)
	a := newTestAssessor(store, clk)

	for i := 0; i < historyLimit+10; i++ {
		a.Probe(context.Background(), account.ID)
	}

	assert.Len(t, a.History(account.ID), historyLimit)
}

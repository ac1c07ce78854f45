package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessRate(t *testing.T) {
	c := PerformanceCounters{TotalRequests: 100, SuccessfulRequests: 87}
	assert.InDelta(t, 0.87, c.SuccessRate(), 1e-9)
}

func TestSuccessRateNoTraffic(t *testing.T) {
	// New accounts get a neutral default instead of zero.
	c := PerformanceCounters{}
	assert.InDelta(t, 0.9, c.SuccessRate(), 1e-9)
}

func TestCountersScanMalformedJSON(t *testing.T) {
	c := PerformanceCounters{TotalRequests: 5}
	require.NoError(t, c.Scan([]byte("{not json")))
	assert.Equal(t, PerformanceCounters{}, c)
}

func TestCountersScanRoundTrip(t *testing.T) {
	var c PerformanceCounters
	require.NoError(t, c.Scan([]byte(`{"total_requests":10,"successful_requests":9,"avg_response_time_ms":120.5}`)))
	assert.Equal(t, int64(10), c.TotalRequests)
	assert.Equal(t, int64(9), c.SuccessfulRequests)
	assert.InDelta(t, 120.5, c.AvgResponseTimeMs, 1e-9)
}

func TestCountersScanNil(t *testing.T) {
	c := PerformanceCounters{TotalRequests: 5}
	require.NoError(t, c.Scan(nil))
	assert.Equal(t, PerformanceCounters{}, c)
}

func TestCapabilitiesSupports(t *testing.T) {
	c := Capabilities{MediaTypes: []MediaType{MediaImage, MediaVideo}}
	assert.True(t, c.Supports(MediaImage))
	assert.True(t, c.Supports(MediaVideo))
	assert.False(t, c.Supports(MediaText))
}

func TestCapabilitiesEmptySupportsEverything(t *testing.T) {
	c := Capabilities{}
	assert.True(t, c.Supports(MediaText))
	assert.True(t, c.Supports(MediaVideo))
}

func TestRuleConditionsScanMalformedJSON(t *testing.T) {
	c := RuleConditions{Models: []string{"gpt-4o"}}
	require.NoError(t, c.Scan([]byte("not json at all")))
	assert.Empty(t, c.Models)
}

func TestTimeWindowContains(t *testing.T) {
	w := TimeWindow{Start: "09:00", End: "17:00"}

	assert.True(t, w.Contains(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 8, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)))
}

func TestTimeWindowWrapsMidnight(t *testing.T) {
	w := TimeWindow{Start: "22:00", End: "06:00"}

	assert.True(t, w.Contains(time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestTimeWindowInvalidFormat(t *testing.T) {
	w := TimeWindow{Start: "9am", End: "5pm"}
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

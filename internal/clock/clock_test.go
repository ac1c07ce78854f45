package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeNow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	assert.Equal(t, start, clk.Now())
	clk.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), clk.Now())
}

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := 0
	clk.AfterFunc(5*time.Minute, func() { fired++ })

	clk.Advance(4 * time.Minute)
	assert.Equal(t, 0, fired)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, fired)

	clk.Advance(time.Hour)
	assert.Equal(t, 1, fired)
}

func TestFakeTimersFireInDeadlineOrder(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var order []string
	clk.AfterFunc(2*time.Minute, func() { order = append(order, "second") })
	clk.AfterFunc(time.Minute, func() { order = append(order, "first") })

	clk.Advance(5 * time.Minute)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestFakeTimerStop(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := false
	timer := clk.AfterFunc(time.Minute, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clk.Advance(time.Hour)
	assert.False(t, fired)
	assert.Equal(t, 0, clk.ActiveTimers())
}

func TestFakeTimerResetReschedules(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := 0
	var timer Timer
	timer = clk.AfterFunc(time.Minute, func() {
		fired++
		if fired == 1 {
			timer.Reset(time.Minute)
		}
	})

	clk.Advance(time.Minute)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, clk.ActiveTimers())

	clk.Advance(time.Minute)
	assert.Equal(t, 2, fired)
	assert.Equal(t, 0, clk.ActiveTimers())
}

func TestFakeTicker(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	ticker := clk.NewTicker(time.Minute)
	defer ticker.Stop()

	clk.Advance(3 * time.Minute)

	ticks := 0
	for {
		select {
		case <-ticker.C():
			ticks++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 3, ticks)
}

func TestFakeSleepReturnsImmediately(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, clk.Sleep(context.Background(), time.Hour))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, clk.Sleep(cancelled, time.Hour), context.Canceled)
}

func TestSystemClockSleepHonorsContext(t *testing.T) {
	clk := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, clk.Sleep(ctx, time.Minute), context.Canceled)
}

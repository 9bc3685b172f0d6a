package engine

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

func newTestController(clock *fakeClock, initial int, hook func(core.Adjustment)) *ConcurrencyController {
	return NewConcurrencyController(ControllerConfig{
		Min:                5,
		Max:                50,
		AdjustmentInterval: 30 * time.Second,
		TargetSuccessRate:  0.95,
		TargetResponseTime: 2 * time.Second,
		Clock:              clock.Now,
		OnAdjust:           hook,
	}, initial)
}

func TestNewConcurrencyControllerClampsInitial(t *testing.T) {
	clock := newFakeClock()

	require.Equal(t, 50, newTestController(clock, 100, nil).CurrentConcurrency())
	require.Equal(t, 5, newTestController(clock, 1, nil).CurrentConcurrency())
	require.Equal(t, 20, newTestController(clock, 20, nil).CurrentConcurrency())

	stats := newTestController(clock, 20, nil).Stats()
	require.Equal(t, 1.0, stats.SuccessRate)
	require.Zero(t, stats.TotalRequests)
	require.Equal(t, clock.Now(), stats.LastAdjustmentAt)
}

func TestConcurrencyControllerDefaults(t *testing.T) {
	c := NewConcurrencyController(ControllerConfig{}, 10)
	stats := c.Stats()
	require.Equal(t, DefaultMinConcurrency, stats.Min)
	require.Equal(t, DefaultMaxConcurrency, stats.Max)
	require.Equal(t, 10, stats.Current)
}

func TestRecordRequestTracksSuccessRate(t *testing.T) {
	c := newTestController(newFakeClock(), 20, nil)

	c.RecordRequest(true, 100*time.Millisecond)
	c.RecordRequest(true, 100*time.Millisecond)
	c.RecordRequest(true, 100*time.Millisecond)
	c.RecordRequest(false, 100*time.Millisecond)

	stats := c.Stats()
	require.EqualValues(t, 4, stats.TotalRequests)
	require.EqualValues(t, 3, stats.SuccessCount)
	require.EqualValues(t, 1, stats.FailureCount)
	require.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
	require.Equal(t, 20, stats.Current)
}

func TestRecordRequestLatencyAverage(t *testing.T) {
	c := newTestController(newFakeClock(), 20, nil)

	c.RecordRequest(true, 0)
	require.Zero(t, c.Stats().AvgResponseTimeMs)

	c.RecordRequest(true, 1000*time.Millisecond)
	require.InDelta(t, 1000.0, c.Stats().AvgResponseTimeMs, 1e-9)

	c.RecordRequest(true, 2000*time.Millisecond)
	require.InDelta(t, 1100.0, c.Stats().AvgResponseTimeMs, 1e-9)
}

func TestControllerBacksOffOnErrors(t *testing.T) {
	clock := newFakeClock()
	var adjustments []core.Adjustment
	c := newTestController(clock, 20, func(a core.Adjustment) {
		adjustments = append(adjustments, a)
	})

	for range 10 {
		c.RecordRequest(false, 100*time.Millisecond)
	}
	require.Equal(t, 20, c.CurrentConcurrency())

	clock.Advance(30 * time.Second)
	c.RecordRequest(false, 100*time.Millisecond)

	require.Equal(t, 16, c.CurrentConcurrency())
	require.Len(t, adjustments, 1)
	require.Equal(t, core.AdjustBackoffErrors, adjustments[0].Rule)
	require.Equal(t, 20, adjustments[0].From)
	require.Equal(t, 16, adjustments[0].To)
	require.Equal(t, clock.Now(), c.Stats().LastAdjustmentAt)
}

func TestControllerEvaluatesAtMostOncePerInterval(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(clock, 20, nil)

	clock.Advance(30 * time.Second)
	c.RecordRequest(false, 100*time.Millisecond)
	require.Equal(t, 16, c.CurrentConcurrency())

	clock.Advance(29 * time.Second)
	for range 20 {
		c.RecordRequest(false, 100*time.Millisecond)
	}
	require.Equal(t, 16, c.CurrentConcurrency())

	clock.Advance(time.Second)
	c.RecordRequest(false, 100*time.Millisecond)
	require.Equal(t, 12, c.CurrentConcurrency())
}

func TestControllerBacksOffOnLatency(t *testing.T) {
	clock := newFakeClock()
	var rules []core.AdjustRule
	c := newTestController(clock, 20, func(a core.Adjustment) {
		rules = append(rules, a.Rule)
	})

	for range 9 {
		c.RecordRequest(true, 5*time.Second)
	}
	clock.Advance(30 * time.Second)
	c.RecordRequest(true, 5*time.Second)

	require.Equal(t, 18, c.CurrentConcurrency())
	require.Equal(t, []core.AdjustRule{core.AdjustBackoffLatency}, rules)
}

func TestControllerErrorRuleWinsOverLatency(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(clock, 20, nil)

	clock.Advance(30 * time.Second)
	c.RecordRequest(false, 5*time.Second)

	require.Equal(t, 16, c.CurrentConcurrency())
}

func TestControllerHoldsBetweenTargets(t *testing.T) {
	clock := newFakeClock()
	called := false
	c := newTestController(clock, 20, func(core.Adjustment) { called = true })

	clock.Advance(30 * time.Second)
	c.RecordRequest(true, 2500*time.Millisecond)

	require.Equal(t, 20, c.CurrentConcurrency())
	require.False(t, called)
	require.Equal(t, clock.Now(), c.Stats().LastAdjustmentAt)
}

func TestControllerGrowsTowardMax(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(clock, 10, nil)

	previous := c.CurrentConcurrency()
	for range 100 {
		clock.Advance(30 * time.Second)
		c.RecordRequest(true, 100*time.Millisecond)

		current := c.CurrentConcurrency()
		require.LessOrEqual(t, current, 50)
		require.GreaterOrEqual(t, current, previous)
		previous = current
	}
	require.Equal(t, 50, previous)
}

func TestControllerGrowthStallsBelowTen(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(clock, 9, nil)

	clock.Advance(30 * time.Second)
	c.RecordRequest(true, 100*time.Millisecond)

	require.Equal(t, 9, c.CurrentConcurrency())
}

func TestControllerBackoffRespectsMin(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(clock, 6, nil)

	clock.Advance(30 * time.Second)
	c.RecordRequest(false, 0)

	require.Equal(t, 5, c.CurrentConcurrency())
}

func TestSetConcurrencyAndRestoreClamp(t *testing.T) {
	c := newTestController(newFakeClock(), 20, nil)

	c.SetConcurrency(500)
	require.Equal(t, 50, c.CurrentConcurrency())

	c.Restore(core.ConcurrencyState{Current: 30, TotalRequests: 99})
	require.Equal(t, 30, c.CurrentConcurrency())
	require.Zero(t, c.Stats().TotalRequests)

	c.Restore(core.ConcurrencyState{})
	require.Equal(t, 30, c.CurrentConcurrency())
}

func TestRecordRequestConcurrent(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(clock, 20, nil)

	var wg sync.WaitGroup
	for g := range 50 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				c.RecordRequest((g+i)%4 != 0, 50*time.Millisecond)
			}
		}(g)
	}
	wg.Wait()

	stats := c.Stats()
	require.EqualValues(t, 5000, stats.TotalRequests)
	require.Equal(t, stats.TotalRequests, stats.SuccessCount+stats.FailureCount)
	require.EqualValues(t, 1250, stats.FailureCount)
}

func TestControllerStaysWithinBoundsUnderMixedLoad(t *testing.T) {
	const (
		lo = 3
		hi = 20
	)
	rng := rand.New(rand.NewPCG(7, 42))
	clock := newFakeClock()
	scales := []time.Duration{200 * time.Millisecond, 2500 * time.Millisecond, 5 * time.Second}

	adjustments := 0
	hook := func(adj core.Adjustment) {
		adjustments++
		require.GreaterOrEqual(t, adj.To, lo)
		require.LessOrEqual(t, adj.To, hi)
		require.GreaterOrEqual(t, adj.From, lo)
		require.LessOrEqual(t, adj.From, hi)
	}

	current := hi
	// Counters are cumulative, so each segment starts a fresh controller at
	// the previous permit count.
	for segment := range 20 {
		c := NewConcurrencyController(ControllerConfig{
			Min:                lo,
			Max:                hi,
			AdjustmentInterval: 5 * time.Second,
			TargetSuccessRate:  0.95,
			TargetResponseTime: 2 * time.Second,
			Clock:              clock.Now,
			OnAdjust:           hook,
		}, current)

		for range 15 {
			failRate := rng.Float64() * 0.3
			if rng.IntN(2) == 0 {
				failRate = 0
			}
			scale := scales[rng.IntN(len(scales))]

			for range 1 + rng.IntN(25) {
				latency := scale/2 + time.Duration(rng.Int64N(int64(scale)))
				c.RecordRequest(rng.Float64() >= failRate, latency)

				n := c.CurrentConcurrency()
				require.GreaterOrEqual(t, n, lo, "segment %d", segment)
				require.LessOrEqual(t, n, hi, "segment %d", segment)
			}
			clock.Advance(time.Duration(1+rng.IntN(8)) * time.Second)
		}
		current = c.CurrentConcurrency()
	}

	require.Positive(t, adjustments)
}

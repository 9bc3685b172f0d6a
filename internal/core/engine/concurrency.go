package engine

import (
	"math"
	"sync"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// Controller defaults.
const (
	DefaultMinConcurrency      = 5
	DefaultMaxConcurrency      = 50
	DefaultAdjustmentInterval  = 30 * time.Second
	DefaultTargetSuccessRate   = 0.95
	DefaultTargetResponseTime  = 2 * time.Second
	controllerLatencySmoothing = 0.1
)

// ControllerConfig is fixed at construction.
type ControllerConfig struct {
	Min                int
	Max                int
	AdjustmentInterval time.Duration
	TargetSuccessRate  float64
	TargetResponseTime time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	// OnAdjust is called after an evaluation that changed the permit count.
	OnAdjust func(core.Adjustment)
}

func controllerConfigWithDefaults(cfg ControllerConfig) ControllerConfig {
	if cfg.Min <= 0 {
		cfg.Min = DefaultMinConcurrency
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMaxConcurrency
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	if cfg.AdjustmentInterval <= 0 {
		cfg.AdjustmentInterval = DefaultAdjustmentInterval
	}
	if cfg.TargetSuccessRate <= 0 || cfg.TargetSuccessRate > 1 {
		cfg.TargetSuccessRate = DefaultTargetSuccessRate
	}
	if cfg.TargetResponseTime <= 0 {
		cfg.TargetResponseTime = DefaultTargetResponseTime
	}
	return cfg
}

// ConcurrencyController self-tunes the number of calls allowed in flight from
// observed success rate and latency. All methods are safe for concurrent use.
type ConcurrencyController struct {
	cfg ControllerConfig

	mu    sync.Mutex
	state core.ConcurrencyState
}

// NewConcurrencyController clamps initial into [Min, Max].
func NewConcurrencyController(cfg ControllerConfig, initial int) *ConcurrencyController {
	cfg = controllerConfigWithDefaults(cfg)
	c := &ConcurrencyController{cfg: cfg}
	c.state = core.ConcurrencyState{
		Current:          c.clamp(initial),
		Min:              cfg.Min,
		Max:              cfg.Max,
		SuccessRate:      1.0,
		LastAdjustmentAt: c.now(),
	}
	return c
}

// CurrentConcurrency returns the permitted number of in-flight calls.
func (c *ConcurrencyController) CurrentConcurrency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Current
}

// RecordRequest folds one call outcome into the counters and, once per
// adjustment interval, re-evaluates the permit count.
func (c *ConcurrencyController) RecordRequest(success bool, responseTime time.Duration) {
	c.mu.Lock()

	c.state.TotalRequests++
	if success {
		c.state.SuccessCount++
	} else {
		c.state.FailureCount++
	}

	if responseTime > 0 {
		sample := durationMs(responseTime)
		if c.state.AvgResponseTimeMs == 0 {
			c.state.AvgResponseTimeMs = sample
		} else {
			c.state.AvgResponseTimeMs = c.state.AvgResponseTimeMs*(1-controllerLatencySmoothing) + sample*controllerLatencySmoothing
		}
	}

	c.state.SuccessRate = float64(c.state.SuccessCount) / float64(c.state.TotalRequests)

	var (
		adjustment core.Adjustment
		evaluated  bool
	)
	now := c.now()
	if now.Sub(c.state.LastAdjustmentAt) >= c.cfg.AdjustmentInterval {
		adjustment = c.adjustLocked(now)
		c.state.LastAdjustmentAt = now
		evaluated = true
	}
	hook := c.cfg.OnAdjust
	c.mu.Unlock()

	if evaluated && hook != nil && adjustment.Changed() {
		hook(adjustment)
	}
}

// adjustLocked applies the first matching rule. Callers hold c.mu.
func (c *ConcurrencyController) adjustLocked(now time.Time) core.Adjustment {
	current := c.state.Current
	target := c.cfg.TargetResponseTime.Seconds() * 1000
	avg := c.state.AvgResponseTimeMs
	rate := c.state.SuccessRate

	adj := core.Adjustment{
		At:                now,
		Rule:              core.AdjustHold,
		From:              current,
		To:                current,
		SuccessRate:       rate,
		AvgResponseTimeMs: avg,
	}

	switch {
	case rate < c.cfg.TargetSuccessRate:
		adj.Rule = core.AdjustBackoffErrors
		adj.To = max(c.cfg.Min, int(math.Floor(float64(current)*0.8)))
	case avg > target*1.5:
		adj.Rule = core.AdjustBackoffLatency
		adj.To = max(c.cfg.Min, int(math.Floor(float64(current)*0.9)))
	case avg < target:
		grown := min(c.cfg.Max, int(math.Floor(float64(current)*1.1)))
		if grown > current {
			adj.Rule = core.AdjustGrow
			adj.To = grown
		}
	}

	c.state.Current = c.clamp(adj.To)
	adj.To = c.state.Current
	return adj
}

// SetConcurrency overrides the permit count, clamped into [Min, Max].
func (c *ConcurrencyController) SetConcurrency(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Current = c.clamp(n)
}

// Restore re-seeds the permit count from persisted state. Counters are per
// run and are not carried over.
func (c *ConcurrencyController) Restore(state core.ConcurrencyState) {
	if state.Current <= 0 {
		return
	}
	c.SetConcurrency(state.Current)
}

// Stats returns a copy of the controller state.
func (c *ConcurrencyController) Stats() core.ConcurrencyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ConcurrencyController) clamp(n int) int {
	if n < c.cfg.Min {
		return c.cfg.Min
	}
	if n > c.cfg.Max {
		return c.cfg.Max
	}
	return n
}

func (c *ConcurrencyController) now() time.Time {
	if c != nil && c.cfg.Clock != nil {
		return c.cfg.Clock()
	}
	return time.Now().UTC()
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

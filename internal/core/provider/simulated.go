package provider

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// SimulatedConfig shapes the offline provider. Zero values disable the
// corresponding behaviour.
type SimulatedConfig struct {
	// RatePerMinute is the provider-side quota per credential.
	RatePerMinute float64
	Burst         int

	BaseLatency time.Duration
	Jitter      time.Duration
	// LoadPenalty is added per call already in flight.
	LoadPenalty time.Duration

	FailureRatio float64
	Seed         uint64

	// Clock overrides time.Now for quota accounting.
	Clock func() time.Time
}

// Simulated emulates a throttled keyword API with one token bucket per
// credential.
type Simulated struct {
	cfg      SimulatedConfig
	inFlight atomic.Int64

	mu      sync.Mutex
	rng     *rand.Rand
	buckets map[int]*rate.Limiter
}

func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Simulated{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		buckets: make(map[int]*rate.Limiter),
	}
}

func (s *Simulated) Call(ctx context.Context, cred core.Credential, item core.WorkItem) error {
	load := s.inFlight.Add(1) - 1
	defer s.inFlight.Add(-1)

	if wait, ok := s.admit(cred.Index); !ok {
		return &core.RateLimitError{Credential: cred.Index, RetryAfter: wait}
	}

	delay, fail := s.draw(load)
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return fmt.Errorf("simulated upstream error for %q", item.Keyword)
	}
	return nil
}

// InFlight returns the number of calls currently executing.
func (s *Simulated) InFlight() int64 {
	return s.inFlight.Load()
}

func (s *Simulated) admit(index int) (time.Duration, bool) {
	if s.cfg.RatePerMinute <= 0 {
		return 0, true
	}

	s.mu.Lock()
	bucket, ok := s.buckets[index]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(s.cfg.RatePerMinute/60), s.cfg.Burst)
		s.buckets[index] = bucket
	}
	s.mu.Unlock()

	if bucket.AllowN(s.now(), 1) {
		return 0, true
	}
	return time.Duration(float64(time.Second) / float64(bucket.Limit())), false
}

func (s *Simulated) draw(load int64) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.cfg.BaseLatency + time.Duration(load)*s.cfg.LoadPenalty
	if s.cfg.Jitter > 0 {
		delay += time.Duration(s.rng.Int64N(int64(s.cfg.Jitter)))
	}
	fail := s.cfg.FailureRatio > 0 && s.rng.Float64() < s.cfg.FailureRatio
	return delay, fail
}

func (s *Simulated) now() time.Time {
	if s.cfg.Clock != nil {
		return s.cfg.Clock()
	}
	return time.Now()
}

package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

func TestNewCredentialPool(t *testing.T) {
	pool := NewCredentialPool(PoolConfig{Size: 3})
	require.Equal(t, 3, pool.Size())
	require.Equal(t, DefaultCredentialCooldown, pool.Cooldown())
	require.Equal(t, 0, pool.SelectBest())

	stats := pool.AllStats()
	require.Len(t, stats, 3)
	for i, rec := range stats {
		require.Equal(t, i, rec.Index)
		require.Zero(t, rec.TotalCalls)
		require.True(t, rec.LastUsedAt.IsZero())
		require.Equal(t, 1.0, rec.SuccessRate())
	}

	require.Equal(t, 1, NewCredentialPool(PoolConfig{}).Size())
}

func TestCredentialPoolPrefersHealthyCredential(t *testing.T) {
	clock := newFakeClock()
	pool := NewCredentialPool(PoolConfig{Size: 2, Clock: clock.Now})

	pool.RecordCall(0, true, 100*time.Millisecond, false)
	pool.RecordCall(0, false, 100*time.Millisecond, false)
	pool.RecordCall(1, true, 100*time.Millisecond, false)
	clock.Advance(2 * time.Minute)

	require.Equal(t, 1, pool.SelectBest())
}

func TestCredentialPoolSkipsCoolingDown(t *testing.T) {
	clock := newFakeClock()
	pool := NewCredentialPool(PoolConfig{Size: 2, Cooldown: 5 * time.Minute, Clock: clock.Now})

	pool.RecordCall(0, true, 0, false)
	pool.RecordCall(0, false, 0, false)
	for range 9 {
		pool.RecordCall(1, true, 0, false)
	}
	pool.RecordCall(1, false, 0, true)

	clock.Advance(61 * time.Second)
	require.Equal(t, 0, pool.SelectBest())

	clock.Advance(5*time.Minute - 61*time.Second)
	require.Equal(t, 1, pool.SelectBest())
}

func TestCredentialPoolFallsBackToLeastRecentlyUsed(t *testing.T) {
	clock := newFakeClock()
	pool := NewCredentialPool(PoolConfig{Size: 3, Clock: clock.Now})

	pool.RecordCall(1, false, 0, true)
	clock.Advance(time.Second)
	pool.RecordCall(0, false, 0, true)
	clock.Advance(time.Second)
	pool.RecordCall(2, false, 0, true)
	clock.Advance(time.Second)

	require.Equal(t, 1, pool.SelectBest())
}

func TestCredentialPoolSelectBestExcept(t *testing.T) {
	pool := NewCredentialPool(PoolConfig{Size: 2})
	require.Equal(t, 1, pool.SelectBestExcept(0))
	require.Equal(t, 0, pool.SelectBestExcept(1))

	single := NewCredentialPool(PoolConfig{Size: 1})
	require.Equal(t, 0, single.SelectBestExcept(0))
}

func TestRecordCallCounters(t *testing.T) {
	clock := newFakeClock()
	pool := NewCredentialPool(PoolConfig{Size: 1, Clock: clock.Now})

	pool.RecordCall(0, true, 100*time.Millisecond, false)
	pool.RecordCall(0, true, 200*time.Millisecond, false)
	pool.RecordCall(0, false, 900*time.Millisecond, false)
	pool.RecordOutcome(0, core.OutcomeRateLimited, 50*time.Millisecond)

	rec, ok := pool.Stats(0)
	require.True(t, ok)
	require.EqualValues(t, 4, rec.TotalCalls)
	require.EqualValues(t, 2, rec.SuccessCount)
	require.EqualValues(t, 1, rec.FailureCount)
	require.EqualValues(t, 1, rec.RateLimitCount)
	require.Equal(t, rec.TotalCalls, rec.SuccessCount+rec.FailureCount+rec.RateLimitCount)
	require.InDelta(t, 120.0, rec.AvgResponseTimeMs, 1e-9)
	require.Equal(t, clock.Now(), rec.LastUsedAt)
}

func TestRecordCallIgnoresUnknownIndex(t *testing.T) {
	pool := NewCredentialPool(PoolConfig{Size: 2})
	before := pool.AllStats()

	pool.RecordCall(-1, true, time.Second, false)
	pool.RecordCall(2, false, time.Second, true)

	require.Equal(t, before, pool.AllStats())
	_, ok := pool.Stats(5)
	require.False(t, ok)
	require.False(t, pool.PredictRateLimit(-1))
}

func TestAllStatsReturnsCopy(t *testing.T) {
	pool := NewCredentialPool(PoolConfig{Size: 1})
	stats := pool.AllStats()
	stats[0].TotalCalls = 42

	rec, _ := pool.Stats(0)
	require.Zero(t, rec.TotalCalls)
}

func TestPredictRateLimit(t *testing.T) {
	clock := newFakeClock()
	pool := NewCredentialPool(PoolConfig{Size: 2, Clock: clock.Now})

	require.False(t, pool.PredictRateLimit(0))

	for range 301 {
		pool.RecordCall(0, true, 0, false)
	}
	for range 300 {
		pool.RecordCall(1, true, 0, false)
	}
	require.True(t, pool.PredictRateLimit(0))
	require.False(t, pool.PredictRateLimit(1))

	clock.Advance(2 * time.Minute)
	require.False(t, pool.PredictRateLimit(0))
}

func TestCredentialPoolRestore(t *testing.T) {
	clock := newFakeClock()
	pool := NewCredentialPool(PoolConfig{Size: 2, Clock: clock.Now})

	pool.Restore([]core.CredentialRecord{
		{Index: 0, TotalCalls: 3, RateLimitCount: 1, FailureCount: 2, LastUsedAt: clock.Now().Add(-time.Minute)},
		{Index: 7, TotalCalls: 9},
	})

	rec, ok := pool.Stats(0)
	require.True(t, ok)
	require.EqualValues(t, 3, rec.TotalCalls)
	require.Equal(t, 1, pool.SelectBest())
	require.Len(t, pool.AllStats(), 2)
}

func TestCredentialPoolConcurrent(t *testing.T) {
	pool := NewCredentialPool(PoolConfig{Size: 4})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				index := pool.SelectBest()
				pool.RecordCall(index, i%5 != 0, 10*time.Millisecond, i%10 == 0)
				_ = pool.PredictRateLimit(index)
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, rec := range pool.AllStats() {
		require.Equal(t, rec.TotalCalls, rec.SuccessCount+rec.FailureCount+rec.RateLimitCount)
		total += rec.TotalCalls
	}
	require.EqualValues(t, 1000, total)
}

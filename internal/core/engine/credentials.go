package engine

import (
	"sync"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// Pool defaults and scoring constants.
const (
	DefaultCredentialCooldown = 5 * time.Minute

	credentialLatencySmoothing = 0.2
	successWeight              = 0.7
	freshnessWeight            = 0.3
	freshnessHorizon           = time.Minute
	predictedCallsPerMinute    = 300
)

// PoolConfig is fixed at construction.
type PoolConfig struct {
	Size     int
	Cooldown time.Duration

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// CredentialPool scores interchangeable credentials and tracks per-credential
// outcomes. All methods are safe for concurrent use; selection may observe
// slightly stale statistics.
type CredentialPool struct {
	cooldown time.Duration
	clock    func() time.Time

	mu      sync.RWMutex
	records []core.CredentialRecord
}

// NewCredentialPool creates Size never-used credential slots. A non-positive
// size yields a single slot so SelectBest always has an index to return.
func NewCredentialPool(cfg PoolConfig) *CredentialPool {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCredentialCooldown
	}

	records := make([]core.CredentialRecord, size)
	for i := range records {
		records[i].Index = i
	}

	return &CredentialPool{
		cooldown: cooldown,
		clock:    cfg.Clock,
		records:  records,
	}
}

// Size returns the number of credential slots.
func (p *CredentialPool) Size() int {
	return len(p.records)
}

// SelectBest returns the eligible credential with the highest score
// (success rate weighted 0.7, idle bonus capped at one minute weighted 0.3).
// Ties keep the lowest index. When every credential is cooling down it falls
// back to the least recently used one.
func (p *CredentialPool) SelectBest() int {
	return p.selectBest(-1)
}

// SelectBestExcept is SelectBest with one index removed from scoring. It
// returns skip itself when no other credential exists.
func (p *CredentialPool) SelectBestExcept(skip int) int {
	if len(p.records) <= 1 {
		return p.selectBest(-1)
	}
	return p.selectBest(skip)
}

func (p *CredentialPool) selectBest(skip int) int {
	now := p.now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	best := -1
	bestScore := -1.0
	for i, rec := range p.records {
		if i == skip || p.inCooldown(rec, now) {
			continue
		}
		score := rec.SuccessRate()*successWeight + freshness(rec, now)*freshnessWeight
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best >= 0 {
		return best
	}

	lru := -1
	for i, rec := range p.records {
		if i == skip {
			continue
		}
		if lru < 0 || rec.LastUsedAt.Before(p.records[lru].LastUsedAt) {
			lru = i
		}
	}
	return lru
}

// RecordCall attributes one call to a credential. Unknown indices are ignored.
// A rate-limited call only bumps the rate limit counter.
func (p *CredentialPool) RecordCall(index int, success bool, responseTime time.Duration, rateLimited bool) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.records) {
		return
	}
	rec := &p.records[index]
	rec.TotalCalls++
	rec.LastUsedAt = now

	switch {
	case rateLimited:
		rec.RateLimitCount++
	case success:
		rec.SuccessCount++
		sample := durationMs(responseTime)
		if rec.AvgResponseTimeMs == 0 {
			rec.AvgResponseTimeMs = sample
		} else {
			rec.AvgResponseTimeMs = rec.AvgResponseTimeMs*(1-credentialLatencySmoothing) + sample*credentialLatencySmoothing
		}
	default:
		rec.FailureCount++
	}
}

// RecordOutcome is RecordCall keyed by a classified outcome.
func (p *CredentialPool) RecordOutcome(index int, outcome core.Outcome, responseTime time.Duration) {
	p.RecordCall(index, outcome == core.OutcomeSuccess, responseTime, outcome == core.OutcomeRateLimited)
}

// Stats returns a copy of one credential's record.
func (p *CredentialPool) Stats(index int) (core.CredentialRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if index < 0 || index >= len(p.records) {
		return core.CredentialRecord{}, false
	}
	return p.records[index], true
}

// AllStats returns copies of every record in index order.
func (p *CredentialPool) AllStats() []core.CredentialRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]core.CredentialRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Restore re-seeds statistics from persisted records, matched by index.
func (p *CredentialPool) Restore(records []core.CredentialRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, rec := range records {
		if rec.Index < 0 || rec.Index >= len(p.records) {
			continue
		}
		p.records[rec.Index] = rec
	}
}

// PredictRateLimit flags a credential whose estimated call rate exceeds 300
// per minute. The estimate divides lifetime calls by the minutes since last
// use, so it is only meaningful right after a burst; treat it as advisory.
func (p *CredentialPool) PredictRateLimit(index int) bool {
	now := p.now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if index < 0 || index >= len(p.records) {
		return false
	}
	rec := p.records[index]
	if rec.TotalCalls == 0 {
		return false
	}

	minutes := now.Sub(rec.LastUsedAt).Minutes()
	if minutes < 1 {
		minutes = 1
	}
	return float64(rec.TotalCalls)/minutes > predictedCallsPerMinute
}

// Cooldown returns the configured rate limit cooldown.
func (p *CredentialPool) Cooldown() time.Duration {
	return p.cooldown
}

func (p *CredentialPool) inCooldown(rec core.CredentialRecord, now time.Time) bool {
	return rec.RateLimitCount > 0 && now.Sub(rec.LastUsedAt) < p.cooldown
}

func freshness(rec core.CredentialRecord, now time.Time) float64 {
	if rec.LastUsedAt.IsZero() {
		return 1.0
	}
	return min(float64(now.Sub(rec.LastUsedAt))/float64(freshnessHorizon), 1.0)
}

func (p *CredentialPool) now() time.Time {
	if p != nil && p.clock != nil {
		return p.clock()
	}
	return time.Now().UTC()
}

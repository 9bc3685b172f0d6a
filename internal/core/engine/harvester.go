package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// DefaultMaxAttempts bounds calls per work item, including the first.
const DefaultMaxAttempts = 2

// DefaultPool names the state namespace when Harvester.Pool is empty.
const DefaultPool = "default"

// Caller performs one call against the external keyword API.
type Caller interface {
	Call(ctx context.Context, cred core.Credential, item core.WorkItem) error
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, cred core.Credential, item core.WorkItem) error

func (f CallerFunc) Call(ctx context.Context, cred core.Credential, item core.WorkItem) error {
	return f(ctx, cred, item)
}

// Sink receives every attempt. Report is called concurrently.
type Sink interface {
	Report(ctx context.Context, result core.CallResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, result core.CallResult)

func (f SinkFunc) Report(ctx context.Context, result core.CallResult) {
	f(ctx, result)
}

// StateStore persists throttle state between invocations.
type StateStore interface {
	LoadThrottleState(ctx context.Context, pool string) (*core.ThrottleSnapshot, error)
	SaveThrottleState(ctx context.Context, snapshot *core.ThrottleSnapshot) error
}

// Harvester drives one run: it pulls work in windows sized by the controller,
// spreads calls across the credential pool and feeds outcomes back into both.
type Harvester struct {
	Pool        string
	Controller  *ConcurrencyController
	Credentials *CredentialPool
	Keys        []core.Credential
	Caller      Caller
	Sink        Sink
	State       StateStore
	Pacer       *Pacer
	MaxAttempts int
	Clock       func() time.Time
}

type runState struct {
	mu        sync.Mutex
	summary   core.RunSummary
	latencies []float64
}

// Run processes source until it is exhausted or ctx is cancelled. The summary
// is returned even when err is non-nil.
func (h *Harvester) Run(ctx context.Context, source WorkSource) (*core.RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if h == nil || h.Controller == nil || h.Credentials == nil || h.Caller == nil {
		return nil, fmt.Errorf("harvester requires a controller, credential pool and caller")
	}
	if source == nil {
		return nil, fmt.Errorf("work source is required")
	}

	run := &runState{summary: core.RunSummary{
		RunID:     uuid.NewString(),
		Pool:      h.pool(),
		StartedAt: h.now(),
	}}

	var errs []error
	if err := h.restore(ctx); err != nil {
		errs = append(errs, err)
	}

	var saveErr error
	for ctx.Err() == nil {
		window := h.Controller.CurrentConcurrency()
		batch, more, err := pull(ctx, source, window)
		if err != nil && ctx.Err() == nil {
			// Items read before the failure still run; the loop stops after them.
			errs = append(errs, fmt.Errorf("read work: %w", err))
			more = false
		}

		if len(batch) > 0 {
			run.summary.Windows++
			p := pool.New().WithMaxGoroutines(window)
			for _, item := range batch {
				p.Go(func() {
					h.process(ctx, run, item)
				})
			}
			p.Wait()

			if err := h.save(ctx); err != nil {
				saveErr = err
			}
		}

		if !more {
			break
		}
	}

	if ctx.Err() != nil {
		run.summary.Cancelled = true
	}
	if err := h.save(context.WithoutCancel(ctx)); err != nil {
		saveErr = err
	}
	if saveErr != nil {
		errs = append(errs, saveErr)
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}

	summary := run.finish(h.now(), h.Controller.CurrentConcurrency())
	return &summary, errors.Join(errs...)
}

// Snapshot captures the current throttle state for persistence or display.
func (h *Harvester) Snapshot() *core.ThrottleSnapshot {
	return &core.ThrottleSnapshot{
		Pool:        h.pool(),
		Concurrency: h.Controller.Stats(),
		Credentials: h.Credentials.AllStats(),
		SavedAt:     h.now(),
	}
}

func pull(ctx context.Context, source WorkSource, limit int) ([]core.WorkItem, bool, error) {
	batch := make([]core.WorkItem, 0, limit)
	for len(batch) < limit {
		item, ok, err := source.Next(ctx)
		if err != nil {
			return batch, false, err
		}
		if !ok {
			return batch, false, nil
		}
		batch = append(batch, item)
	}
	return batch, true, nil
}

func (h *Harvester) process(ctx context.Context, run *runState, item core.WorkItem) {
	attempts := h.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var final core.Outcome
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		index, err := h.choose(ctx)
		if err != nil {
			break
		}
		cred := h.credential(index)

		start := h.now()
		callErr := h.Caller.Call(ctx, cred, item)
		latency := h.now().Sub(start)

		if callErr != nil && ctx.Err() != nil && errors.Is(callErr, ctx.Err()) {
			break
		}

		outcome := core.ClassifyError(callErr)
		h.Credentials.RecordOutcome(index, outcome, latency)
		h.Controller.RecordRequest(outcome == core.OutcomeSuccess, latency)

		made++
		final = outcome
		result := core.CallResult{
			RunID:      run.summary.RunID,
			Item:       item,
			Credential: index,
			Label:      cred.Label,
			Attempt:    attempt,
			Outcome:    outcome,
			Duration:   latency,
			At:         start,
		}
		if callErr != nil {
			result.Error = callErr.Error()
		}
		run.attempt(latency)
		if h.Sink != nil {
			h.Sink.Report(ctx, result)
		}

		if outcome == core.OutcomeSuccess {
			break
		}
	}

	if made > 0 {
		run.item(final, made)
	}
}

// choose picks a credential, rotating away from one predicted to be near its
// provider limit and pacing when no alternative is available.
func (h *Harvester) choose(ctx context.Context) (int, error) {
	index := h.Credentials.SelectBest()
	if !h.Credentials.PredictRateLimit(index) {
		return index, nil
	}
	if alt := h.Credentials.SelectBestExcept(index); alt != index && !h.Credentials.PredictRateLimit(alt) {
		return alt, nil
	}
	if err := h.Pacer.Wait(ctx); err != nil {
		return index, err
	}
	return index, nil
}

func (h *Harvester) credential(index int) core.Credential {
	if index >= 0 && index < len(h.Keys) {
		cred := h.Keys[index]
		cred.Index = index
		return cred
	}
	return core.Credential{Index: index}
}

func (h *Harvester) restore(ctx context.Context) error {
	if h.State == nil {
		return nil
	}
	snapshot, err := h.State.LoadThrottleState(ctx, h.pool())
	if err != nil {
		return fmt.Errorf("load throttle state: %w", err)
	}
	if snapshot == nil {
		return nil
	}
	h.Controller.Restore(snapshot.Concurrency)
	h.Credentials.Restore(snapshot.Credentials)
	return nil
}

func (h *Harvester) save(ctx context.Context) error {
	if h.State == nil {
		return nil
	}
	if err := h.State.SaveThrottleState(ctx, h.Snapshot()); err != nil {
		return fmt.Errorf("save throttle state: %w", err)
	}
	return nil
}

func (h *Harvester) pool() string {
	if h.Pool == "" {
		return DefaultPool
	}
	return h.Pool
}

func (h *Harvester) now() time.Time {
	if h != nil && h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

func (r *runState) attempt(latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Attempts++
	r.latencies = append(r.latencies, durationMs(latency))
}

func (r *runState) item(outcome core.Outcome, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Items++
	r.summary.Retries += attempts - 1
	switch outcome {
	case core.OutcomeSuccess:
		r.summary.Succeeded++
	case core.OutcomeRateLimited:
		r.summary.RateLimited++
	default:
		r.summary.Failed++
	}
}

func (r *runState) finish(at time.Time, concurrency int) core.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := r.summary
	summary.FinishedAt = at
	summary.FinalConcurrency = concurrency
	if len(r.latencies) > 0 {
		sorted := slices.Clone(r.latencies)
		slices.Sort(sorted)
		summary.MeanLatencyMs = stat.Mean(sorted, nil)
		summary.P50LatencyMs = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		summary.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return summary
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

const defaultRunLimit = 20

// RunQuery filters run history. An empty Pool matches every pool.
type RunQuery struct {
	Pool  string
	Limit int
}

// RecordRun stores or replaces a run summary.
func (s *Store) RecordRun(ctx context.Context, run *core.RunSummary) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if run == nil || strings.TrimSpace(run.RunID) == "" {
		return errors.New("run id is required")
	}

	cancelled := 0
	if run.Cancelled {
		cancelled = 1
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO harvest_runs (run_id, pool, started_at, finished_at, items, succeeded, failed,
			rate_limited, attempts, retries, windows, final_concurrency,
			mean_latency_ms, p50_latency_ms, p95_latency_ms, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			items = excluded.items,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			rate_limited = excluded.rate_limited,
			attempts = excluded.attempts,
			retries = excluded.retries,
			windows = excluded.windows,
			final_concurrency = excluded.final_concurrency,
			mean_latency_ms = excluded.mean_latency_ms,
			p50_latency_ms = excluded.p50_latency_ms,
			p95_latency_ms = excluded.p95_latency_ms,
			cancelled = excluded.cancelled
	`), run.RunID, run.Pool, toMillis(run.StartedAt), toMillis(run.FinishedAt),
		run.Items, run.Succeeded, run.Failed, run.RateLimited, run.Attempts, run.Retries, run.Windows,
		run.FinalConcurrency, run.MeanLatencyMs, run.P50LatencyMs, run.P95LatencyMs, cancelled)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, q RunQuery) ([]core.RunSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}

	where := ""
	args := []any{}
	if pool := strings.TrimSpace(q.Pool); pool != "" {
		where = "WHERE pool = ?"
		args = append(args, pool)
	}
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT run_id, pool, started_at, finished_at, items, succeeded, failed,
			rate_limited, attempts, retries, windows, final_concurrency,
			mean_latency_ms, p50_latency_ms, p95_latency_ms, cancelled
		FROM harvest_runs
		%s
		ORDER BY started_at DESC, run_id
		LIMIT ?
	`, where)), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	runs := []core.RunSummary{}
	for rows.Next() {
		var (
			run                 core.RunSummary
			startedAt, finished int64
			cancelled           int
		)
		if err := rows.Scan(&run.RunID, &run.Pool, &startedAt, &finished, &run.Items, &run.Succeeded, &run.Failed,
			&run.RateLimited, &run.Attempts, &run.Retries, &run.Windows, &run.FinalConcurrency,
			&run.MeanLatencyMs, &run.P50LatencyMs, &run.P95LatencyMs, &cancelled); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		run.StartedAt = fromMillis(startedAt)
		run.FinishedAt = fromMillis(finished)
		run.Cancelled = cancelled != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

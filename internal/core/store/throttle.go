package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// LoadThrottleState returns the persisted snapshot for pool, or nil when the
// pool has never been saved.
func (s *Store) LoadThrottleState(ctx context.Context, pool string) (*core.ThrottleSnapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool = strings.TrimSpace(pool)
	if pool == "" {
		return nil, errors.New("pool is required")
	}

	var (
		state            core.ConcurrencyState
		lastAdjustmentAt int64
		savedAt          int64
	)
	row := s.DB.QueryRowContext(ctx, s.rebind(`
		SELECT current_concurrency, min_concurrency, max_concurrency,
			total_requests, success_count, failure_count,
			success_rate, avg_response_ms, last_adjustment_at, saved_at
		FROM throttle_controller
		WHERE pool = ?
	`), pool)
	if err := row.Scan(
		&state.Current, &state.Min, &state.Max,
		&state.TotalRequests, &state.SuccessCount, &state.FailureCount,
		&state.SuccessRate, &state.AvgResponseTimeMs, &lastAdjustmentAt, &savedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch throttle state: %w", err)
	}
	state.LastAdjustmentAt = fromMillis(lastAdjustmentAt)

	rows, err := s.DB.QueryContext(ctx, s.rebind(`
		SELECT credential_index, success_count, failure_count, rate_limit_count,
			total_calls, last_used_at, avg_response_ms
		FROM throttle_credentials
		WHERE pool = ?
		ORDER BY credential_index
	`), pool)
	if err != nil {
		return nil, fmt.Errorf("fetch credential state: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	records := []core.CredentialRecord{}
	for rows.Next() {
		var (
			rec        core.CredentialRecord
			lastUsedAt int64
		)
		if err := rows.Scan(&rec.Index, &rec.SuccessCount, &rec.FailureCount, &rec.RateLimitCount,
			&rec.TotalCalls, &lastUsedAt, &rec.AvgResponseTimeMs); err != nil {
			return nil, fmt.Errorf("scan credential state: %w", err)
		}
		rec.LastUsedAt = fromMillis(lastUsedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch credential state: %w", err)
	}

	return &core.ThrottleSnapshot{
		Pool:        pool,
		Concurrency: state,
		Credentials: records,
		SavedAt:     fromMillis(savedAt),
	}, nil
}

// SaveThrottleState replaces the persisted snapshot for snapshot.Pool.
func (s *Store) SaveThrottleState(ctx context.Context, snapshot *core.ThrottleSnapshot) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if snapshot == nil {
		return errors.New("throttle snapshot is required")
	}
	pool := strings.TrimSpace(snapshot.Pool)
	if pool == "" {
		return errors.New("pool is required")
	}

	savedAt := snapshot.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin throttle save: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	state := snapshot.Concurrency
	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO throttle_controller (pool, current_concurrency, min_concurrency, max_concurrency,
			total_requests, success_count, failure_count, success_rate, avg_response_ms,
			last_adjustment_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pool) DO UPDATE SET
			current_concurrency = excluded.current_concurrency,
			min_concurrency = excluded.min_concurrency,
			max_concurrency = excluded.max_concurrency,
			total_requests = excluded.total_requests,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			success_rate = excluded.success_rate,
			avg_response_ms = excluded.avg_response_ms,
			last_adjustment_at = excluded.last_adjustment_at,
			saved_at = excluded.saved_at
	`), pool, state.Current, state.Min, state.Max,
		state.TotalRequests, state.SuccessCount, state.FailureCount, state.SuccessRate, state.AvgResponseTimeMs,
		toMillis(state.LastAdjustmentAt), toMillis(savedAt)); err != nil {
		return fmt.Errorf("store throttle state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM throttle_credentials WHERE pool = ? AND credential_index >= ?
	`), pool, len(snapshot.Credentials)); err != nil {
		return fmt.Errorf("prune credential state: %w", err)
	}

	for _, rec := range snapshot.Credentials {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO throttle_credentials (pool, credential_index, success_count, failure_count,
				rate_limit_count, total_calls, last_used_at, avg_response_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(pool, credential_index) DO UPDATE SET
				success_count = excluded.success_count,
				failure_count = excluded.failure_count,
				rate_limit_count = excluded.rate_limit_count,
				total_calls = excluded.total_calls,
				last_used_at = excluded.last_used_at,
				avg_response_ms = excluded.avg_response_ms
		`), pool, rec.Index, rec.SuccessCount, rec.FailureCount,
			rec.RateLimitCount, rec.TotalCalls, toMillis(rec.LastUsedAt), rec.AvgResponseTimeMs); err != nil {
			return fmt.Errorf("store credential %d state: %w", rec.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit throttle state: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

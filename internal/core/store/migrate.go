package store

import (
	"context"
	"fmt"
)

// Statements are portable between SQLite/libsql and Postgres. Timestamps are
// unix milliseconds with 0 meaning unset.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS throttle_controller (
		pool TEXT PRIMARY KEY,
		current_concurrency INTEGER NOT NULL,
		min_concurrency INTEGER NOT NULL,
		max_concurrency INTEGER NOT NULL,
		total_requests BIGINT NOT NULL DEFAULT 0,
		success_count BIGINT NOT NULL DEFAULT 0,
		failure_count BIGINT NOT NULL DEFAULT 0,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 1,
		avg_response_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_adjustment_at BIGINT NOT NULL DEFAULT 0,
		saved_at BIGINT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS throttle_credentials (
		pool TEXT NOT NULL,
		credential_index INTEGER NOT NULL,
		success_count BIGINT NOT NULL DEFAULT 0,
		failure_count BIGINT NOT NULL DEFAULT 0,
		rate_limit_count BIGINT NOT NULL DEFAULT 0,
		total_calls BIGINT NOT NULL DEFAULT 0,
		last_used_at BIGINT NOT NULL DEFAULT 0,
		avg_response_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (pool, credential_index)
	);`,
	`CREATE TABLE IF NOT EXISTS harvest_runs (
		run_id TEXT PRIMARY KEY,
		pool TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		finished_at BIGINT NOT NULL DEFAULT 0,
		items INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		rate_limited INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		retries INTEGER NOT NULL DEFAULT 0,
		windows INTEGER NOT NULL DEFAULT 0,
		final_concurrency INTEGER NOT NULL DEFAULT 0,
		mean_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		p50_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		p95_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_harvest_runs_pool ON harvest_runs(pool, started_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}

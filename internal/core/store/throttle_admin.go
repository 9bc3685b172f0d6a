package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// ThrottleQuery selects persisted pools for the admin commands.
type ThrottleQuery struct {
	All    bool
	Pool   string
	Prefix string
}

func (q ThrottleQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Pool) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --pool, or --prefix")
}

func (q ThrottleQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if pool := strings.TrimSpace(q.Pool); pool != "" {
		return "WHERE pool = ?", []any{pool}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE pool LIKE ?", []any{prefix + "%"}, nil
}

// ListThrottleStates returns full snapshots for every matching pool.
func (s *Store) ListThrottleStates(ctx context.Context, q ThrottleQuery) ([]core.ThrottleSnapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pools, err := s.matchingPools(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]core.ThrottleSnapshot, 0, len(pools))
	for _, pool := range pools {
		snapshot, err := s.LoadThrottleState(ctx, pool)
		if err != nil {
			return nil, err
		}
		if snapshot != nil {
			out = append(out, *snapshot)
		}
	}
	return out, nil
}

func (s *Store) CountThrottleStates(ctx context.Context, q ThrottleQuery) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM throttle_controller
		%s
	`, where)), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count throttle states: %w", err)
	}
	return count, nil
}

// ResetThrottleStates deletes matching pools and returns how many were removed.
func (s *Store) ResetThrottleStates(ctx context.Context, q ThrottleQuery) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("reset throttle states: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`
		DELETE FROM throttle_credentials
		%s
	`, where)), args...); err != nil {
		return 0, fmt.Errorf("reset credential states: %w", err)
	}

	result, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`
		DELETE FROM throttle_controller
		%s
	`, where)), args...)
	if err != nil {
		return 0, fmt.Errorf("reset throttle states: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset throttle states: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("reset throttle states: %w", err)
	}
	return affected, nil
}

func (s *Store) matchingPools(ctx context.Context, q ThrottleQuery) ([]string, error) {
	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(fmt.Sprintf(`
		SELECT pool
		FROM throttle_controller
		%s
		ORDER BY pool
	`, where)), args...)
	if err != nil {
		return nil, fmt.Errorf("list throttle states: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	pools := []string{}
	for rows.Next() {
		var pool string
		if err := rows.Scan(&pool); err != nil {
			return nil, fmt.Errorf("scan throttle states: %w", err)
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list throttle states: %w", err)
	}
	return pools, nil
}

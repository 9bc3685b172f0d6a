package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lsk7209/0-nkey-sub001/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./nkey.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./nkey.db", dsn)
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestBuildPgxDSN(t *testing.T) {
	dsn, err := buildPgxDSN(config.StoreConfig{URL: " postgres://nkey:pw@localhost:5432/nkey?sslmode=disable "})
	require.NoError(t, err)
	require.Equal(t, "postgres://nkey:pw@localhost:5432/nkey?sslmode=disable", dsn)

	_, err = buildPgxDSN(config.StoreConfig{URL: "host=localhost dbname=nkey"})
	require.NoError(t, err)

	_, err = buildPgxDSN(config.StoreConfig{Path: "./nkey.db"})
	require.Error(t, err)

	_, err = buildPgxDSN(config.StoreConfig{URL: "mysql://nope"})
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	query := "SELECT a FROM t WHERE pool = ? AND idx >= ? LIMIT ?"
	require.Equal(t, "SELECT a FROM t WHERE pool = $1 AND idx >= $2 LIMIT $3", rebindDollar(query))

	require.Equal(t, query, (&Store{driver: driverLibsql}).rebind(query))
	require.Equal(t, rebindDollar(query), (&Store{driver: driverPgx}).rebind(query))
}

func TestThrottleQuery(t *testing.T) {
	require.Error(t, ThrottleQuery{}.Validate())
	require.Error(t, ThrottleQuery{Pool: "  "}.Validate())

	where, args, err := ThrottleQuery{All: true}.whereClause()
	require.NoError(t, err)
	require.Empty(t, where)
	require.Empty(t, args)

	where, args, err = ThrottleQuery{Pool: " naver "}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE pool = ?", where)
	require.Equal(t, []any{"naver"}, args)

	where, args, err = ThrottleQuery{Prefix: "nav"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE pool LIKE ?", where)
	require.Equal(t, []any{"nav%"}, args)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(t.Context(), config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestNilStoreIsNotReady(t *testing.T) {
	var s *Store
	require.Error(t, s.Migrate(t.Context()))
	require.Error(t, s.CheckHealth(t.Context()))
	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/storage"
	"github.com/hupe1980/tmrm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T, path string) *Store {
	t.Helper()
	db, err := sql.Open(SQLite.Driver, path)
	require.NoError(t, err)
	s, err := New(context.Background(), db, SQLite)
	require.NoError(t, err)
	return s
}

func TestSQLite_Contract(t *testing.T) {
	testutil.RunStorageSuite(t, func(t *testing.T) storage.Storage {
		return openSQLite(t, filepath.Join(t.TempDir(), "map.db"))
	})
}

func TestSQLite_InMemory(t *testing.T) {
	testutil.RunStorageSuite(t, func(t *testing.T) storage.Storage {
		return openSQLite(t, ":memory:")
	})
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "map.db")

	s := openSQLite(t, path)
	g, err := testutil.NewRNG(7).Graph(ctx, s, 12, 80)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openSQLite(t, path)
	defer s.Close()

	c, err := s.Proxies(ctx)
	require.NoError(t, err)
	ids, err := storage.Collect(c)
	require.NoError(t, err)
	assert.Equal(t, g.Proxies, ids)

	for _, id := range g.Proxies {
		c, err := s.Properties(ctx, id, model.NoProxy)
		require.NoError(t, err)
		got, err := storage.Collect(c)
		require.NoError(t, err)
		want := g.BySource(id)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Key, got[i].Key)
			assert.True(t, want[i].Value.Equal(got[i].Value))
		}
	}

	next, err := s.AllocateProxy(ctx)
	require.NoError(t, err)
	assert.Greater(t, next, g.Proxies[len(g.Proxies)-1])
}

func TestSQLite_UnknownProxy(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, ":memory:")
	defer s.Close()

	p, err := s.AllocateProxy(ctx)
	require.NoError(t, err)

	err = s.AddProperty(ctx, model.Property{Source: p, Key: p, Value: model.ProxyValue(p + 10)})
	require.ErrorIs(t, err, storage.ErrUnknownProxy)
	var se *storage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "add_property", se.Op)

	c, err := s.Properties(ctx, p, model.NoProxy)
	require.NoError(t, err)
	got, err := storage.Collect(c)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_Setup(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, filepath.Join(t.TempDir(), "map.db"))
	defer s.Close()

	var fk, timeout int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 1, fk)
	assert.Equal(t, 5000, timeout)

	_, err := s.db.ExecContext(ctx, "INSERT INTO tmrm_property (source, pkey) VALUES (41, 42)")
	assert.Error(t, err)
}

func TestSQLite_NestedReads(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, ":memory:")
	defer s.Close()

	_, err := testutil.NewRNG(3).Graph(ctx, s, 5, 20)
	require.NoError(t, err)

	proxies, err := s.Proxies(ctx)
	require.NoError(t, err)
	defer proxies.Close()

	total := 0
	for proxies.Next() {
		c, err := s.Properties(ctx, proxies.Value(), model.NoProxy)
		require.NoError(t, err)
		props, err := storage.Collect(c)
		require.NoError(t, err)
		total += len(props)
	}
	require.NoError(t, proxies.Err())
	assert.Equal(t, 20, total)
}

func TestPostgres_Contract(t *testing.T) {
	dsn := os.Getenv("TMRM_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TMRM_POSTGRES_DSN not set")
	}

	testutil.RunStorageSuite(t, func(t *testing.T) storage.Storage {
		ctx := context.Background()
		db, err := sql.Open(Postgres.Driver, dsn)
		require.NoError(t, err)
		for _, table := range []string{"tmrm_property", "tmrm_proxy"} {
			_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
			require.NoError(t, err)
		}
		s, err := New(ctx, db, Postgres)
		require.NoError(t, err)
		return s
	})
}

func TestDialect_Bind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, SQLite.bind(q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", Postgres.bind(q))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("SQLite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "map.db")
		st, err := Open(ctx, fmt.Sprintf("driver='sqlite' path='%s'", path))
		require.NoError(t, err)
		defer st.Close()
		_, err = st.AllocateProxy(ctx)
		require.NoError(t, err)
	})

	for name, desc := range map[string]string{
		"UnknownDriver": "driver='oracle'",
		"MissingPath":   "driver='sqlite'",
		"Unreachable":   fmt.Sprintf("driver='sqlite' path='%s'", filepath.Join(t.TempDir(), "missing", "dir", "map.db")),
		"Malformed":     "driver",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Open(ctx, desc)
			var ce *storage.ConnectionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, Name, ce.Backend)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	d, err := storage.ParseDescriptor("driver='postgres' host='db' user='tmrm' password='p w' sslmode='disable'")
	require.NoError(t, err)
	assert.Equal(t, `host=db user=tmrm password='p w' sslmode=disable`, postgresDSN(d))

	d, err = storage.ParseDescriptor("dsn='postgres://x'")
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", postgresDSN(d))
}

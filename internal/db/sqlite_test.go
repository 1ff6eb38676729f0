package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	w := dsn("/tmp/meta.sqlite", ModeWrite)
	assert.True(t, strings.HasPrefix(w, "file:/tmp/meta.sqlite?"))
	assert.Contains(t, w, "_journal_mode=WAL")
	assert.Contains(t, w, "_foreign_keys=on")
	assert.Contains(t, w, "_txlock=immediate")

	r := dsn("/tmp/meta.sqlite", ModeRead)
	assert.NotContains(t, r, "_txlock")
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.sqlite"), Mode("both"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sqlite pool mode")
}

func TestOpenPools(t *testing.T) {
	pools, err := OpenPools(filepath.Join(t.TempDir(), "meta.sqlite"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pools.Close() })

	assert.Equal(t, 1, pools.Write.Stats().MaxOpenConnections)
	assert.Equal(t, defaultReadConns, pools.Read.Stats().MaxOpenConnections)

	var mode string
	require.NoError(t, pools.Read.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))

	var fk int
	require.NoError(t, pools.Write.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrate_Idempotent(t *testing.T) {
	pools := OpenTestPools(t)

	v, err := Migrate(context.Background(), pools.Write, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	var n int
	require.NoError(t, pools.Read.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('projects','data_sources','data_entries','audit_log')`,
	).Scan(&n))
	assert.Equal(t, 4, n)
}

func TestForeignKeysEnforced(t *testing.T) {
	pools := OpenTestPools(t)

	_, err := pools.Write.Exec(
		`INSERT INTO data_sources (id, name, origin, owner, project_id) VALUES ('d1', 'x', 'manual-upload', 'u1', 'missing')`,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOREIGN KEY")
}

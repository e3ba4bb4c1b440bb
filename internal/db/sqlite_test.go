package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	t.Run("write mode", func(t *testing.T) {
		dsn := buildDSN("/tmp/state.sqlite", "write")
		assert.True(t, strings.HasPrefix(dsn, "/tmp/state.sqlite?"))
		assert.Contains(t, dsn, "_journal_mode=WAL")
		assert.Contains(t, dsn, "_busy_timeout=5000")
		assert.Contains(t, dsn, "_synchronous=NORMAL")
		assert.Contains(t, dsn, "_foreign_keys=on")
		assert.Contains(t, dsn, "_txlock=immediate")
	})

	t.Run("read mode has no txlock", func(t *testing.T) {
		dsn := buildDSN("/tmp/state.sqlite", "read")
		assert.Contains(t, dsn, "_journal_mode=WAL")
		assert.NotContains(t, dsn, "_txlock")
	})
}

func TestOpenSQLite(t *testing.T) {
	t.Run("invalid mode rejected", func(t *testing.T) {
		_, err := OpenSQLite(filepath.Join(t.TempDir(), "state.sqlite"), "invalid", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SQLite mode")
	})

	t.Run("unreachable path fails on ping", func(t *testing.T) {
		_, err := OpenSQLite("/nonexistent/dir/state.sqlite", "write", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ping sqlite")
	})

	t.Run("write pool is single connection with WAL", func(t *testing.T) {
		conn, err := OpenSQLite(filepath.Join(t.TempDir(), "state.sqlite"), "write", 0)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })

		assert.Equal(t, 1, conn.Stats().MaxOpenConnections)

		var journalMode string
		require.NoError(t, conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", strings.ToLower(journalMode))

		var busyTimeout int
		require.NoError(t, conn.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, 5000, busyTimeout)
	})

	t.Run("read pool defaults to four connections", func(t *testing.T) {
		conn, err := OpenSQLite(filepath.Join(t.TempDir(), "state.sqlite"), "read", 0)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		assert.Equal(t, 4, conn.Stats().MaxOpenConnections)
	})
}

func TestOpenSQLitePair_StateSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")

	writeDB, readDB, err := OpenSQLitePair(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		writeDB.Close()
		readDB.Close()
	})

	require.NoError(t, RunMigrations(writeDB))

	// Migrations are idempotent: a second run is a no-op.
	require.NoError(t, RunMigrations(writeDB))

	// Cache entry written through the write pool is visible to the read pool.
	_, err = writeDB.Exec(
		"INSERT INTO cache_entries (cache_key, query_id, payload, expires_at, created_at) VALUES (?, ?, ?, NULL, ?)",
		"dataquery:v1:emp:abc", "emp", "{}", 1700000000,
	)
	require.NoError(t, err)

	var queryID string
	require.NoError(t, readDB.QueryRow(
		"SELECT query_id FROM cache_entries WHERE cache_key = ?", "dataquery:v1:emp:abc",
	).Scan(&queryID))
	assert.Equal(t, "emp", queryID)
}

// The busy_timeout setting must keep concurrent audit writes and listing
// reads from surfacing SQLITE_BUSY.
func TestOpenSQLitePair_ConcurrentWritesAndReads(t *testing.T) {
	writeDB, readDB := OpenTestSQLite(t)

	var wg sync.WaitGroup
	writeErrs := make([]error, 16)
	readErrs := make([]error, 16)

	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			_, writeErrs[idx] = writeDB.Exec(
				"INSERT INTO execution_audit (execution_id, query_id, ts, row_count, duration_ms, cache_hit) VALUES (?, ?, ?, 0, 0, 0)",
				"exec-"+string(rune('a'+idx)), "emp", int64(idx),
			)
		}(i)
		go func(idx int) {
			defer wg.Done()
			var count int
			readErrs[idx] = readDB.QueryRow("SELECT count(*) FROM execution_audit").Scan(&count)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		assert.NoError(t, writeErrs[i], "writer %d", i)
		assert.NoError(t, readErrs[i], "reader %d", i)
	}

	var total int
	require.NoError(t, readDB.QueryRow("SELECT count(*) FROM execution_audit").Scan(&total))
	assert.Equal(t, 16, total)
}

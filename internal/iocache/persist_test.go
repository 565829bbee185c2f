package iocache

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/reposcore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCaching(t *testing.T) {
	t.Helper()
	initOnce = sync.Once{}
	closeOnce = sync.Once{}
	Manager = &CacheStoreManager{}
}

func TestInitCaching(t *testing.T) {
	t.Run("sqlite stores", func(t *testing.T) {
		resetCaching(t)
		dir := t.TempDir()
		cachePath := filepath.Join(dir, "cache.db")
		runsPath := filepath.Join(dir, "runs.db")

		require.NoError(t, InitCaching(schema.SQLiteBackend, cachePath, schema.SQLiteBackend, runsPath))
		assert.NotNil(t, Manager.GetSignalStore())
		assert.NotNil(t, Manager.GetRunStore())
		CloseCaching()

		_, err := os.Stat(cachePath)
		assert.NoError(t, err)
		_, err = os.Stat(runsPath)
		assert.NoError(t, err)
	})

	t.Run("idempotent setup", func(t *testing.T) {
		resetCaching(t)
		path := filepath.Join(t.TempDir(), "cache.db")
		for range 3 {
			assert.NoError(t, InitCaching(schema.SQLiteBackend, path, "", ""))
		}
		assert.Nil(t, Manager.GetRunStore())
		CloseCaching()
		CloseCaching()
	})

	t.Run("none backend", func(t *testing.T) {
		resetCaching(t)
		require.NoError(t, InitCaching(schema.NoneBackend, "", schema.NoneBackend, ""))
		status, err := Manager.GetSignalStore().GetStatus()
		require.NoError(t, err)
		assert.False(t, status.Connected)
		CloseCaching()
	})

	t.Run("bad runs backend closes the cache", func(t *testing.T) {
		resetCaching(t)
		err := InitCaching(schema.NoneBackend, "", schema.DatabaseBackend("redis"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize run store")
		assert.Nil(t, Manager.GetSignalStore())
	})
}

func TestClearCacheAndRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, ClearCache(schema.SQLiteBackend, path, ""))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, ClearCache(schema.SQLiteBackend, path, ""), "missing file is fine")
	assert.Error(t, ClearRuns(schema.SQLiteBackend, "", ""))
	assert.NoError(t, ClearRuns(schema.NoneBackend, "", ""))
	assert.Error(t, ClearCache(schema.DatabaseBackend("redis"), "", ""))
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "none"})
	assert.Equal(t, "Cache Backend: none\nConnected: false\n", buf.String())

	buf.Reset()
	PrintRunStatus(&buf, schema.RunStatus{
		Backend:          "sqlite",
		Connected:        true,
		TotalRuns:        1,
		LastRunID:        7,
		LastRunUUID:      "u-7",
		LastRunTime:      time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		OldestRunTime:    time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		TotalReposScored: 12,
		TableSizes:       map[string]int64{resultsTable: 12, runsTable: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "Last Run ID: 7 (u-7)")
	assert.Contains(t, out, "Total Repositories Scored: 12")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(resultsTable)), bytes.Index(buf.Bytes(), []byte("reposcore_runs:")))
}

package iocache

import (
	"database/sql"
	"testing"
	"time"

	"github.com/huangsam/reposcore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoneBackendCacheStore(t *testing.T) {
	store, err := NewCacheStore(signalTable, schema.NoneBackend, "")
	require.NoError(t, err)

	_, _, _, err = store.Get("k")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, store.Set("k", []byte("v"), 1, time.Now().Unix()))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "none", status.Backend)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestNewCacheStoreRejectsBadInput(t *testing.T) {
	_, err := NewCacheStore("bad-name", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)

	_, err = NewCacheStore(signalTable, schema.DatabaseBackend("redis"), "")
	assert.Error(t, err)
}

func TestSQLiteCacheStore(t *testing.T) {
	store, err := NewCacheStore("test_table", schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	t.Run("missing key", func(t *testing.T) {
		_, _, _, err := store.Get("missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("set and get", func(t *testing.T) {
		now := time.Now().Unix()
		require.NoError(t, store.Set("k1", []byte("250"), 1, now))

		value, version, ts, err := store.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("250"), value)
		assert.Equal(t, 1, version)
		assert.Equal(t, now, ts)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		require.NoError(t, store.Set("k1", []byte("251"), 2, 42))
		value, version, ts, err := store.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("251"), value)
		assert.Equal(t, 2, version)
		assert.Equal(t, int64(42), ts)
	})

	t.Run("status", func(t *testing.T) {
		require.NoError(t, store.Set("k2", []byte("1.5"), 1, 10))
		status, err := store.GetStatus()
		require.NoError(t, err)
		assert.True(t, status.Connected)
		assert.Equal(t, 2, status.TotalEntries)
		assert.Equal(t, time.Unix(42, 0), status.LastEntryTime)
		assert.Equal(t, time.Unix(10, 0), status.OldestEntryTime)
		assert.Greater(t, status.TableSizeBytes, int64(0))
	})
}

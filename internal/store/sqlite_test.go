// ABOUTME: Tests for the SQLite and in-memory KV implementations
// ABOUTME: Verifies load/save round-trips, scope isolation, and delete semantics

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestKV(t *testing.T) *SQLiteKV {
	tmpDir := t.TempDir()
	kv, err := NewSQLiteKV(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

// kvContract runs the shared contract checks against any KV implementation.
func kvContract(t *testing.T, kv KV) {
	ctx := context.Background()

	// Absent scope
	_, err := kv.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Save and load
	require.NoError(t, kv.Save(ctx, "scope-a", []byte(`{"hello":"world"}`)))
	got, err := kv.Load(ctx, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, `{"hello":"world"}`, string(got))

	// Overwrite
	require.NoError(t, kv.Save(ctx, "scope-a", []byte(`[]`)))
	got, err = kv.Load(ctx, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	// Scopes are independent
	require.NoError(t, kv.Save(ctx, "scope-b", []byte(`1`)))
	got, err = kv.Load(ctx, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	// Delete removes only the named scope
	require.NoError(t, kv.Delete(ctx, "scope-a"))
	_, err = kv.Load(ctx, "scope-a")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err = kv.Load(ctx, "scope-b")
	require.NoError(t, err)
	assert.Equal(t, `1`, string(got))

	// Deleting an absent scope is a no-op
	require.NoError(t, kv.Delete(ctx, "never-existed"))
}

func TestSQLiteKV_Contract(t *testing.T) {
	kvContract(t, createTestKV(t))
}

func TestMemoryKV_Contract(t *testing.T) {
	kvContract(t, NewMemoryKV())
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.db")

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Save(ctx, "loop-chat-chats-u1", []byte(`[{"id":"c1"}]`)))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "loop-chat-chats-u1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"c1"}]`, string(got))
}

func TestSQLiteKV_CreatesParentDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	kv, err := NewSQLiteKV(filepath.Join(tmpDir, "nested", "dir", "test.db"))
	require.NoError(t, err)
	kv.Close()
}

func TestMemoryKV_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Save(ctx, "s", []byte("abc")))

	got, err := kv.Load(ctx, "s")
	require.NoError(t, err)
	got[0] = 'x'

	again, err := kv.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

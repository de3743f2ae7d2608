package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)

func TestFileStore_Roundtrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	info := &Info{SessionKey: "chat-1", SessionID: "s-1", ProjectPath: "/repo/a", CompactionCount: 2}
	require.NoError(t, store.Save("writer", info))

	got, err := store.Load("writer", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, info, got)

	infos, err := store.List("writer")
	require.NoError(t, err)
	require.Len(t, infos, 1)

	require.NoError(t, store.Delete("writer", "chat-1"))
	_, err = store.Load("writer", "chat-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_MissingRecord(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Load("writer", "absent")
	assert.True(t, errors.Is(err, ErrNotFound))

	infos, err := store.List("writer")
	require.NoError(t, err)
	assert.Empty(t, infos)

	assert.NoError(t, store.Delete("writer", "absent"))
}

func TestFileStore_SanitizesHostileKeys(t *testing.T) {
	store := NewFileStore(t.TempDir())

	// Caller-chosen keys must not escape the store root.
	info := &Info{SessionKey: "../../etc/passwd", SessionID: "s-1"}
	require.NoError(t, store.Save("agent/../up", info))

	got, err := store.Load("agent/../up", "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.SessionID)
}

func TestInMemoryStore_CopiesRecords(t *testing.T) {
	store := NewInMemoryStore()

	info := &Info{SessionKey: "chat-1", SessionID: "s-1"}
	require.NoError(t, store.Save("writer", info))

	// Mutating the saved pointer must not affect the stored record.
	info.SessionID = "mutated"

	got, err := store.Load("writer", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.SessionID)
}

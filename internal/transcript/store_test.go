package transcript

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "transcript.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBeginAndFinishSession(t *testing.T) {
	store := openStore(t)

	baseline := map[int]string{10: "Hello ", 20: "world "}
	id, err := store.BeginSession(baseline)
	require.NoError(t, err)
	require.NotZero(t, id)

	rec, err := store.Session(id)
	require.NoError(t, err)
	assert.Equal(t, baseline, rec.Baseline)
	assert.False(t, rec.StartedAt.IsZero())
	assert.True(t, rec.EndedAt.IsZero())
	assert.Empty(t, rec.FinalText)

	require.NoError(t, store.FinishSession(id, "Hello universe "))

	rec, err = store.Session(id)
	require.NoError(t, err)
	assert.False(t, rec.EndedAt.IsZero())
	assert.Equal(t, "Hello universe ", rec.FinalText)
}

func TestAppendAndListUpdates(t *testing.T) {
	store := openStore(t)

	id, err := store.BeginSession(map[int]string{10: "Hello "})
	require.NoError(t, err)

	require.NoError(t, store.AppendUpdate(id, 0, 10, "Goodbye ", 6, "Goodbye "))
	require.NoError(t, store.AppendUpdate(id, 1, 20, "world ", 0, "world "))

	updates, err := store.Updates(id)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, 0, updates[0].Seq)
	assert.Equal(t, 10, updates[0].Pos)
	assert.Equal(t, "Goodbye ", updates[0].Content)
	assert.Equal(t, 6, updates[0].Deleted)

	assert.Equal(t, 1, updates[1].Seq)
	assert.Equal(t, 20, updates[1].Pos)
	assert.Equal(t, 0, updates[1].Deleted)
	assert.Equal(t, "world ", updates[1].Inserted)
}

func TestSession_NotFound(t *testing.T) {
	store := openStore(t)

	_, err := store.Session(42)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.FinishSession(42, "text")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExport(t *testing.T) {
	store := openStore(t)

	id, err := store.BeginSession(map[int]string{10: "a ", 20: "b "})
	require.NoError(t, err)
	require.NoError(t, store.AppendUpdate(id, 0, 10, "a ", 0, ""))
	require.NoError(t, store.FinishSession(id, "a b "))

	packet, err := store.Export(id)
	require.NoError(t, err)
	assert.Equal(t, id, packet.Session.ID)
	assert.Len(t, packet.Updates, 1)

	// The packet must round-trip as JSON for the replay command.
	data, err := json.Marshal(packet)
	require.NoError(t, err)

	var decoded Packet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, packet.Session.FinalText, decoded.Session.FinalText)
	assert.Equal(t, packet.Updates[0].Pos, decoded.Updates[0].Pos)
}

func TestMultipleSessionsIsolated(t *testing.T) {
	store := openStore(t)

	first, err := store.BeginSession(map[int]string{10: "x "})
	require.NoError(t, err)
	second, err := store.BeginSession(map[int]string{10: "y "})
	require.NoError(t, err)

	require.NoError(t, store.AppendUpdate(first, 0, 10, "x ", 0, ""))

	updates, err := store.Updates(second)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "transcript.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

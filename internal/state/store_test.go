package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

func TestFileStoreMissingFileIsFresh(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.HasSynced())
	assert.NotNil(t, st.LocallyModified)
	assert.Empty(t, st.Tombstones)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)

	st := domain.NewSyncState()
	st.LastSyncTime = 1700000000000
	st.LastRemoteChecksum = "abc"
	st.MarkModified("12", "7")
	st.RecordDeletion("https://gone", 1699999999000)
	require.NoError(t, s.Save(ctx, st))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	st, err := s.Load(ctx)
	require.NoError(t, err)
	st.MarkModified("a")
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.LocallyModified)

	require.NoError(t, s.Save(ctx, st))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.ModifiedIDs())
}

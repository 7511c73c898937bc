package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every SnapshotStore shares.
func exerciseStore(t *testing.T, s SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	data, err := s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.Save(ctx, "app", []byte(`{"v":1}`)))
	require.NoError(t, s.Save(ctx, "app", []byte(`{"v":2}`)))

	data, err = s.Load(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	require.NoError(t, s.Delete(ctx, "app"))
	require.NoError(t, s.Delete(ctx, "app"))
	data, err = s.Load(ctx, "app")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Save(ctx, "app", nil), ErrStoreClosed)
	_, err = s.Load(ctx, "app")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Delete(ctx, "app"), ErrStoreClosed)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Save(ctx, "k", buf))
	buf[0] = 'x'

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, _ := s.Load(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Len())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "team/a", []byte("{}")))
	assert.Equal(t, filepath.Join(dir, "team%2Fa.json"), s.Path("team/a"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
	assert.Equal(t, "team%2Fa.json", entries[0].Name())
}

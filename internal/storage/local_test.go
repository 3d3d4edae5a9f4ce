package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderRequestAccess(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	provider := NewLocalProvider()

	handle, err := provider.RequestAccess(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), handle.URI)
	assert.Equal(t, filepath.Base(root), handle.Name)

	_, err = provider.RequestAccess(context.Background(), filepath.Join(root, "missing"))
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	var accessErr *AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "folder does not exist", accessErr.Reason)

	_, err = provider.RequestAccess(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestLocalProviderListAndRead(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Rock"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp3"), []byte("abcd"), 0o644))

	provider := NewLocalProvider()
	ctx := context.Background()

	entries, err := provider.List(ctx, root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	kinds := map[string]EntryKind{}
	for _, entry := range entries {
		kinds[entry.Name] = entry.Kind
		if entry.Name == "a.mp3" {
			assert.Equal(t, int64(4), entry.Size)
		}
	}
	assert.Equal(t, KindFile, kinds["a.mp3"])
	assert.Equal(t, KindDir, kinds["Rock"])

	_, err = provider.List(ctx, filepath.Join(root, "a.mp3"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	exists, err := provider.Exists(ctx, "file://"+filepath.ToSlash(filepath.Join(root, "a.mp3")))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = provider.Exists(ctx, filepath.Join(root, "gone.mp3"))
	require.NoError(t, err)
	assert.False(t, exists)

	reader, err := provider.Open(ctx, filepath.Join(root, "a.mp3"))
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, reader.Close())
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(body))

	dest := filepath.Join(t.TempDir(), "copies", "a.mp3")
	require.NoError(t, provider.CopyToLocal(ctx, FileHandle{URI: filepath.Join(root, "a.mp3")}, dest))
	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(copied))
}

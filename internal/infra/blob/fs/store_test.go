package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantledger/internal/blob/core"
)

func TestFilesystemStoreLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "images")
	store, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, store.Driver())
	assert.Equal(t, root, store.Root())

	key := "images/seed_batch/b1/photo.png"
	info, err := store.Put(ctx, key, strings.NewReader("png"), core.PutOptions{
		ContentType: "image/png",
		Metadata:    map[string]string{"owner": "b1"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.Size)
	assert.Len(t, info.ETag, 64)
	assert.True(t, strings.HasPrefix(info.URL, "file://"))

	_, err = store.Put(ctx, key, strings.NewReader("dup"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	head, err := store.Head(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "b1", head.Metadata["owner"])

	got, rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", got.ContentType)

	_, err = os.Stat(filepath.Join(root, "images", "seed_batch", "b1", "photo.png"))
	require.NoError(t, err)

	list, err := store.List(ctx, "images/seed_batch/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, key, list[0].Key)
	none, err := store.List(ctx, "images/collection/")
	require.NoError(t, err)
	assert.Empty(t, none)

	existed, err := store.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = store.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, existed)

	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = store.Head(ctx, key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"", "  ", "/etc/passwd", "../x", "a/../../x", "x.meta"} {
		_, err := sanitizeKey(key)
		assert.Error(t, err, key)
	}
	clean, err := sanitizeKey("images/a//b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "images/a/b.jpg", clean)
}

func TestPresignRejectsWrites(t *testing.T) {
	t.Parallel()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = store.PresignURL(context.Background(), "a.jpg", core.SignedURLOptions{Method: "PUT"})
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

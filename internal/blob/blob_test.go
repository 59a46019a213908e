package blob

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	fsStore, err := Open(ctx, Config{FSRoot: filepath.Join(t.TempDir(), "img")})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, fsStore.Driver())

	mem, err := Open(ctx, Config{Driver: "MEMORY"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, mem.Driver())

	_, err = Open(ctx, Config{Driver: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.Error(t, err)
}

func TestImageKeyLayout(t *testing.T) {
	key := ImageKey("seed_batch", "b1", "Photo.JPG")
	assert.Regexp(t, regexp.MustCompile(`^images/seed_batch/b1/[0-9a-f-]{36}\.jpg$`), key)
	assert.NotEqual(t, key, ImageKey("seed_batch", "b1", "Photo.JPG"))

	bare := ImageKey("collection", "c1", "noext")
	assert.Regexp(t, regexp.MustCompile(`^images/collection/c1/[0-9a-f-]{36}$`), bare)
}

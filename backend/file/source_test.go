package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileverse/rangereader"
	"github.com/tileverse/rangereader/backend/file"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestOpenReadsKnownSize(t *testing.T) {
	data := []byte("hello range world")
	src, err := file.Open(writeTempFile(t, data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	size, known, err := src.Size(context.Background())
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, int64(len(data)), size)
}

func TestReadRangeReturnsRequestedSlice(t *testing.T) {
	data := []byte("0123456789abcdef")
	src, err := file.Open(writeTempFile(t, data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	buf, err := src.ReadRange(context.Background(), 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "6789a", string(buf.Bytes()))
}

func TestOpenMissingFileReturnsErrNotFound(t *testing.T) {
	_, err := file.Open(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rangereader.ErrNotFound))
}

func TestSourceIdentifierIsPrefixed(t *testing.T) {
	path := writeTempFile(t, []byte("x"))
	src, err := file.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	assert.Equal(t, "file:"+path, src.SourceIdentifier())
}

func TestCloseClosesUnderlyingFile(t *testing.T) {
	src, err := file.Open(writeTempFile(t, []byte("hello")))
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.ReadRange(context.Background(), 0, 1)
	assert.Error(t, err)
}

package rangereader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileverse/rangereader"
	"github.com/tileverse/rangereader/internal/testutil"
)

func TestBlockAlignedReaderRejectsBadBlockSize(t *testing.T) {
	src := testutil.Sequential(10, "test:bs")
	_, err := rangereader.NewBlockAlignedReader(src, 0)
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)

	_, err = rangereader.NewBlockAlignedReader(src, -4096)
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)
}

func TestBlockAlignedReaderAlignsAndTrims(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(10000, "test:align")
	counting := testutil.NewCounting(src)

	r, err := rangereader.NewBlockAlignedReader(counting, 4096)
	require.NoError(t, err)

	buf, err := rangereader.Read(ctx, r, 100, 50)
	require.NoError(t, err)
	require.Len(t, buf.Bytes(), 50)
	for i, b := range buf.Bytes() {
		assert.Equal(t, byte(100+i), b)
	}
	assert.Equal(t, int64(1), counting.Reads())
}

func TestBlockAlignedReaderPartialAtEOF(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(5000, "test:eof-align")
	r, err := rangereader.NewBlockAlignedReader(src, 4096)
	require.NoError(t, err)

	buf, err := rangereader.Read(ctx, r, 4900, 500)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), 100)

	buf, err = rangereader.Read(ctx, r, 6000, 100)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), 0)
}

func TestBlockAlignedReaderCloseClosesDelegate(t *testing.T) {
	src := testutil.Sequential(10, "test:close-align")
	counting := testutil.NewCounting(src)
	r, err := rangereader.NewBlockAlignedReader(counting, 4096)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, int64(1), counting.Closes())
}

func TestBlockAlignedReaderSourceIdentifier(t *testing.T) {
	src := testutil.Sequential(10, "inner")
	r, err := rangereader.NewBlockAlignedReader(src, 4096)
	require.NoError(t, err)
	assert.Equal(t, "block-aligned:inner", r.SourceIdentifier())
}

package rangereader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileverse/rangereader"
	"github.com/tileverse/rangereader/internal/testutil"
)

func TestReadRangeBasic(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(1024, "test:basic")

	buf, err := rangereader.Read(ctx, src, 100, 50)
	require.NoError(t, err)
	require.Len(t, buf.Bytes(), 50)
	for i, b := range buf.Bytes() {
		assert.Equal(t, byte(100+i), b)
	}

	size, known, err := src.Size(ctx)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, int64(1024), size)
}

func TestReadRangeEOFClip(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(100_000, "test:eof")

	buf, err := rangereader.Read(ctx, src, 99_500, 1000)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), 500)

	buf, err = rangereader.Read(ctx, src, 100_500, 100)
	require.NoError(t, err)
	assert.Len(t, buf.Bytes(), 0)
}

func TestReadRangeZeroLength(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(10, "test:zero")

	target := rangereader.NewBuffer(10)
	n, err := src.ReadRangeAt(ctx, 0, 0, target)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 0, target.Position())
}

func TestReadRangeInvalidArguments(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(10, "test:invalid")

	_, err := src.ReadRangeAt(ctx, -1, 5, rangereader.NewBuffer(5))
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)

	_, err = src.ReadRangeAt(ctx, 0, -5, rangereader.NewBuffer(5))
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)

	_, err = src.ReadRangeAt(ctx, 0, 5, nil)
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)

	_, err = src.ReadRangeAt(ctx, 0, 5, rangereader.NewBuffer(2))
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)

	_, err = src.ReadRangeAt(ctx, 0, 5, rangereader.ReadOnlyBuffer(make([]byte, 5)))
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)
}

func TestReadRangePastEOFReturnsZero(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(10, "test:past-eof")

	target := rangereader.NewBuffer(5)
	n, err := src.ReadRangeAt(ctx, 20, 5, target)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCloseIsIdempotent(t *testing.T) {
	src := testutil.Sequential(10, "test:close")
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

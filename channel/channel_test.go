package channel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileverse/rangereader"
	"github.com/tileverse/rangereader/channel"
	"github.com/tileverse/rangereader/internal/testutil"
)

func TestSequentialReadAdvancesPosition(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(1000, "test:seq")
	ch := channel.NewSequential(src)

	buf := make([]byte, 100)
	n, err := ch.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, int64(100), ch.Position())

	n, err = ch.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	for i, b := range buf {
		assert.Equal(t, byte((100+i)%256), b)
	}
	assert.Equal(t, int64(200), ch.Position())
}

func TestSequentialEndOfStreamIsZeroLengthNoError(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(10, "test:seq-eof")
	ch := channel.NewSequential(src)

	buf := make([]byte, 10)
	n, err := ch.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	n, err = ch.Read(ctx, buf[:5])
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSeekablePositionRoundTripsWithReadRange(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(1000, "test:seekable-roundtrip")
	ch := channel.NewSeekable(src)

	require.NoError(t, ch.SetPosition(250))
	buf := make([]byte, 40)
	n, err := ch.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 40, n)

	expected, err := rangereader.Read(ctx, src, 250, 40)
	require.NoError(t, err)
	assert.Equal(t, expected.Bytes(), buf)
}

func TestSeekableRejectsNegativePosition(t *testing.T) {
	src := testutil.Sequential(10, "test:seekable-neg")
	ch := channel.NewSeekable(src)
	err := ch.SetPosition(-1)
	assert.ErrorIs(t, err, rangereader.ErrInvalidArgument)
}

func TestSeekableWriteAndTruncateFail(t *testing.T) {
	src := testutil.Sequential(10, "test:seekable-write")
	ch := channel.NewSeekable(src)

	_, err := ch.Write([]byte("x"))
	assert.ErrorIs(t, err, rangereader.ErrNotWritable)

	err = ch.Truncate(0)
	assert.ErrorIs(t, err, rangereader.ErrNotWritable)
}

func TestSeekableFailsAfterClose(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(10, "test:seekable-closed")
	ch := channel.NewSeekable(src)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close()) // idempotent

	_, err := ch.Position()
	assert.ErrorIs(t, err, rangereader.ErrClosed)

	err = ch.SetPosition(0)
	assert.ErrorIs(t, err, rangereader.ErrClosed)

	_, err = ch.Read(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, rangereader.ErrClosed)

	_, _, err = ch.Size(ctx)
	assert.ErrorIs(t, err, rangereader.ErrClosed)
}

func TestSeekableSize(t *testing.T) {
	ctx := context.Background()
	src := testutil.Sequential(12345, "test:seekable-size")
	ch := channel.NewSeekable(src)

	size, known, err := ch.Size(ctx)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, int64(12345), size)
}

// Package testutil provides a deterministic in-memory RangeReader and a
// call-counting wrapper, shared by the unit tests across this module's
// packages (decorators, channel adapters, provider factory).
package testutil

import (
	"context"
	"sync/atomic"

	"github.com/tileverse/rangereader"
)

// ByteSource is a RangeReader backed by an in-memory byte slice, standing
// in for a backend in decorator/channel/provider tests.
type ByteSource struct {
	data   []byte
	id     string
	closed atomic.Bool
}

var _ rangereader.RangeReader = (*ByteSource)(nil)

// NewByteSource returns a ByteSource serving data under the given source
// identifier.
func NewByteSource(data []byte, id string) *ByteSource {
	return &ByteSource{data: data, id: id}
}

// Sequential returns a ByteSource of n bytes where byte i == byte(i % 256),
// useful for asserting that a read returned the right slice of content.
func Sequential(n int, id string) *ByteSource {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return NewByteSource(data, id)
}

func (s *ByteSource) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, s, offset, length, target)
}

func (s *ByteSource) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, s, offset, length)
}

func (s *ByteSource) ReadRangeNoFlip(_ context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	if s.closed.Load() {
		return 0, rangereader.ErrClosed
	}
	end := offset + length
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	if end <= offset {
		return 0, nil
	}
	n, err := target.Write(s.data[offset:end])
	return int64(n), err
}

func (s *ByteSource) Size(context.Context) (int64, bool, error) {
	return int64(len(s.data)), true, nil
}

func (s *ByteSource) SourceIdentifier() string { return s.id }

func (s *ByteSource) Close() error {
	s.closed.Store(true)
	return nil
}

// Counting wraps a RangeReader, counting delegate calls so tests can assert
// cache-coalescing and block-alignment properties ("no additional delegate
// calls after a cache hit").
type Counting struct {
	rangereader.RangeReader
	reads  atomic.Int64
	closes atomic.Int64
}

var _ rangereader.RangeReader = (*Counting)(nil)

// NewCounting wraps delegate, counting ReadRangeNoFlip-driving calls made
// through ReadRangeAt/ReadRange.
func NewCounting(delegate rangereader.RangeReader) *Counting {
	return &Counting{RangeReader: delegate}
}

func (c *Counting) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	c.reads.Add(1)
	return c.RangeReader.ReadRangeAt(ctx, offset, length, target)
}

func (c *Counting) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	c.reads.Add(1)
	return c.RangeReader.ReadRange(ctx, offset, length)
}

func (c *Counting) Close() error {
	c.closes.Add(1)
	return c.RangeReader.Close()
}

// Reads returns the number of ReadRangeAt/ReadRange calls observed.
func (c *Counting) Reads() int64 { return c.reads.Load() }

// Closes returns the number of Close calls observed.
func (c *Counting) Closes() int64 { return c.closes.Load() }

// Package channel provides stream-like facades over a rangereader.RangeReader
// for callers that want sequential or seekable io-style access instead of
// explicit offset/length reads.
package channel

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tileverse/rangereader"
)

// Sequential is a read-only, monotonically-advancing view over a
// RangeReader. It never closes the underlying reader.
type Sequential struct {
	r   rangereader.RangeReader
	pos atomic.Int64
}

// NewSequential returns a Sequential channel starting at offset 0.
func NewSequential(r rangereader.RangeReader) *Sequential {
	return &Sequential{r: r}
}

// Read reads up to len(p) bytes from the current position, advancing it by
// the number of bytes returned. Read returns n == 0 and a nil error when
// the underlying reader has no more bytes to offer (end-of-stream is
// signaled by a zero-length, error-free read rather than io.EOF, so
// callers that want io.Reader semantics must map that case to io.EOF at
// the call site).
func (s *Sequential) Read(ctx context.Context, p []byte) (int, error) {
	offset := s.pos.Load()
	buf, err := s.r.ReadRange(ctx, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, buf.Bytes())
	s.pos.Add(int64(n))
	return n, nil
}

// Position returns the current read position.
func (s *Sequential) Position() int64 {
	return s.pos.Load()
}

// Seekable adds absolute positioning and size reporting to a RangeReader
// view. Writes and truncation are unsupported and always fail with
// ErrNotWritable. After Close, Read, Position, SetPosition and Size fail
// with ErrClosed; Close is idempotent.
type Seekable struct {
	r      rangereader.RangeReader
	pos    atomic.Int64
	closed atomic.Bool
}

// NewSeekable returns a Seekable channel starting at offset 0.
func NewSeekable(r rangereader.RangeReader) *Seekable {
	return &Seekable{r: r}
}

// Read reads up to len(p) bytes from the current position, advancing it by
// the number of bytes returned.
func (s *Seekable) Read(ctx context.Context, p []byte) (int, error) {
	if s.closed.Load() {
		return 0, rangereader.ErrClosed
	}
	offset := s.pos.Load()
	buf, err := s.r.ReadRange(ctx, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, buf.Bytes())
	s.pos.Add(int64(n))
	return n, nil
}

// Position returns the current position.
func (s *Seekable) Position() (int64, error) {
	if s.closed.Load() {
		return 0, rangereader.ErrClosed
	}
	return s.pos.Load(), nil
}

// SetPosition moves to p, rejecting negative positions.
func (s *Seekable) SetPosition(p int64) error {
	if s.closed.Load() {
		return rangereader.ErrClosed
	}
	if p < 0 {
		return fmt.Errorf("channel: position %d: %w", p, rangereader.ErrInvalidArgument)
	}
	s.pos.Store(p)
	return nil
}

// Size reports the underlying blob's size, if known.
func (s *Seekable) Size(ctx context.Context) (int64, bool, error) {
	if s.closed.Load() {
		return 0, false, rangereader.ErrClosed
	}
	return s.r.Size(ctx)
}

// Write always fails: Seekable is read-only.
func (s *Seekable) Write([]byte) (int, error) {
	return 0, rangereader.ErrNotWritable
}

// Truncate always fails: Seekable is read-only.
func (s *Seekable) Truncate(int64) error {
	return rangereader.ErrNotWritable
}

// Close marks the channel closed. It does not close the underlying
// RangeReader, which the caller retains ownership of. Close is idempotent.
func (s *Seekable) Close() error {
	s.closed.Store(true)
	return nil
}

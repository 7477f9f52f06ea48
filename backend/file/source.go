// Package file implements a RangeReader backed by a local *os.File, opened
// for random access via ReadAt.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/tileverse/rangereader"
)

// Source wraps an *os.File opened for reading.
type Source struct {
	f    *os.File
	size int64
	path string
}

var _ rangereader.RangeReader = (*Source)(nil)

// Open opens path for random access and stats it to determine its size.
func Open(path string) (*Source, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file: %s: %w", path, rangereader.ErrNotFound)
		}
		return nil, fmt.Errorf("file: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file: stat %s: %w", path, err)
	}
	return &Source{f: f, size: info.Size(), path: path}, nil
}

func (s *Source) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, s, offset, length, target)
}

func (s *Source) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, s, offset, length)
}

// ReadRangeNoFlip reads via ReadAt; offset/length have already been
// validated and clipped to Size by Validate, so a short read here can only
// mean concurrent truncation of the underlying file.
func (s *Source) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	scratch := make([]byte, length)
	n, err := s.f.ReadAt(scratch, offset)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("file: %s: reading range %d+%d: %w", s.path, offset, length, err)
	}
	written, writeErr := target.Write(scratch[:n])
	if writeErr != nil {
		return int64(written), writeErr
	}
	return int64(written), nil
}

func (s *Source) Size(context.Context) (int64, bool, error) {
	return s.size, true, nil
}

func (s *Source) SourceIdentifier() string {
	return "file:" + s.path
}

func (s *Source) Close() error {
	return s.f.Close()
}

package rangereader

import (
	"context"
	"fmt"
)

// BlockAlignedReader rounds every delegate request outward to multiples of
// a fixed block size, reducing the number of (and improving the size of)
// requests made to a slow delegate.
//
// Given a request [O, O+L), it reads the enclosing aligned range
// [floor(O/B)*B, ceil((O+L)/B)*B) from the delegate — clipped to the
// delegate's Size when known — into a scratch buffer, then copies the
// requested sub-slice into target. A request entirely past EOF yields 0; a
// request straddling EOF returns the partial prefix without failing.
//
// BlockAlignedReader exclusively owns its delegate: Close closes it.
type BlockAlignedReader struct {
	delegate  RangeReader
	blockSize int64
}

// Interface compliance.
var _ RangeReader = (*BlockAlignedReader)(nil)

// NewBlockAlignedReader wraps delegate, rounding reads out to blockSize.
// blockSize must be positive; a power of two is recommended but not
// required (floor/ceil division works for any positive value — see
// IsPowerOfTwo to enforce the recommendation).
func NewBlockAlignedReader(delegate RangeReader, blockSize int64) (*BlockAlignedReader, error) {
	if delegate == nil {
		return nil, fmt.Errorf("rangereader: nil delegate: %w", ErrInvalidArgument)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("rangereader: block size %d: %w", blockSize, ErrInvalidArgument)
	}
	return &BlockAlignedReader{delegate: delegate, blockSize: blockSize}, nil
}

// IsPowerOfTwo reports whether n is a positive power of two, for callers
// that want to enforce the recommended block-size shape before calling
// NewBlockAlignedReader.
func IsPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

func (r *BlockAlignedReader) ReadRangeAt(ctx context.Context, offset, length int64, target *Buffer) (int64, error) {
	return Validate(ctx, r, offset, length, target)
}

func (r *BlockAlignedReader) ReadRange(ctx context.Context, offset, length int64) (*Buffer, error) {
	return Read(ctx, r, offset, length)
}

// ReadRangeNoFlip is the Hook implementation: offset/length have already
// been validated and clipped to a known delegate Size by Validate.
func (r *BlockAlignedReader) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *Buffer) (int64, error) {
	alignedStart := (offset / r.blockSize) * r.blockSize
	alignedEnd := ((offset + length + r.blockSize - 1) / r.blockSize) * r.blockSize

	if size, known, err := r.delegate.Size(ctx); err != nil {
		return 0, err
	} else if known && alignedEnd > size {
		alignedEnd = size
	}

	scratch, err := r.delegate.ReadRange(ctx, alignedStart, alignedEnd-alignedStart)
	if err != nil {
		return 0, err
	}

	data := scratch.Bytes()
	start := offset - alignedStart
	if start >= int64(len(data)) {
		return 0, nil
	}
	end := start + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	n, err := target.Write(data[start:end])
	return int64(n), err
}

func (r *BlockAlignedReader) Size(ctx context.Context) (int64, bool, error) {
	return r.delegate.Size(ctx)
}

func (r *BlockAlignedReader) SourceIdentifier() string {
	return "block-aligned:" + r.delegate.SourceIdentifier()
}

func (r *BlockAlignedReader) Close() error {
	return r.delegate.Close()
}

package rangereader

import (
	"context"
	"fmt"
)

// RangeReader is the capability shared by every node in a read pipeline:
// backends, [BlockAlignedReader], the memorycache and diskcache decorators,
// and anything a provider constructs.
//
// All RangeReader implementations must be safe for concurrent ReadRangeAt /
// ReadRange calls against the same instance.
type RangeReader interface {
	// ReadRangeAt reads up to length bytes starting at offset into target,
	// returning the number of bytes written. n may be less than length only
	// when the request extends past end-of-blob. ReadRangeAt never reads or
	// writes outside target's remaining capacity and never flips target.
	ReadRangeAt(ctx context.Context, offset, length int64, target *Buffer) (n int64, err error)

	// ReadRange is the buffer-returning convenience form: it allocates a
	// Buffer, reads into it, and flips it so callers can read the result
	// directly via Bytes().
	ReadRange(ctx context.Context, offset, length int64) (*Buffer, error)

	// Size reports the blob length if known. known is false when the
	// backend cannot or will not answer (e.g. some HTTP servers).
	Size(ctx context.Context) (size int64, known bool, err error)

	// SourceIdentifier returns a stable, human-readable key for the blob,
	// used for cache scoping and diagnostics. Decorators prefix it, e.g.
	// "memory-cached:<inner>", "disk-cached:<inner>".
	SourceIdentifier() string

	// Close releases resources, closing the delegate if any. Close is
	// idempotent.
	Close() error
}

// Hook is the single extension point a backend or decorator implements to
// satisfy the RangeReader contract. ReadRangeNoFlip writes at most length
// bytes at target's current cursor, advances the cursor by the number
// written, and never flips the buffer. Its length argument has already been
// validated (non-negative) and clipped to a known Size by [Validate] —
// implementations only need to handle the actual read and short reads at
// EOF.
//
// ReadRangeNoFlip is exported — rather than kept package-private — because
// Go interface satisfaction requires implementing types to share a package
// with an unexported method, which would force every decorator into this
// package. Callers should use ReadRangeAt/ReadRange (which delegate to
// [Validate]/[Read]) instead of calling
// ReadRangeNoFlip directly; nothing prevents it, but it skips validation.
type Hook interface {
	ReadRangeNoFlip(ctx context.Context, offset, length int64, target *Buffer) (int64, error)
	Size(ctx context.Context) (int64, bool, error)
}

// Validate implements the shared validation and clipping protocol:
// negative offset/length, a zero length, and a nil/read-only/too-small
// target are rejected or short-circuited before h.ReadRangeNoFlip is ever
// called; a known Size clips the request so the hook never sees a range
// extending past EOF.
//
// Every concrete RangeReader (decorator or backend) should implement
// ReadRangeAt as a one-line call to Validate with itself as the Hook.
func Validate(ctx context.Context, h Hook, offset, length int64, target *Buffer) (int64, error) {
	if offset < 0 {
		return 0, fmt.Errorf("rangereader: offset %d: %w", offset, ErrInvalidArgument)
	}
	if length < 0 {
		return 0, fmt.Errorf("rangereader: length %d: %w", length, ErrInvalidArgument)
	}
	if length == 0 {
		return 0, nil
	}
	if target == nil {
		return 0, fmt.Errorf("rangereader: nil target: %w", ErrInvalidArgument)
	}
	if target.ReadOnly() {
		return 0, fmt.Errorf("rangereader: read-only target: %w", ErrInvalidArgument)
	}
	if int64(target.Remaining()) < length {
		return 0, fmt.Errorf("rangereader: target has %d bytes remaining, need %d: %w", target.Remaining(), length, ErrInvalidArgument)
	}

	size, known, err := h.Size(ctx)
	if err != nil {
		return 0, err
	}
	if known {
		if offset >= size {
			return 0, nil
		}
		if offset+length > size {
			length = size - offset
		}
	}

	return h.ReadRangeNoFlip(ctx, offset, length, target)
}

// Read is the free-function form of the buffer-returning convenience read:
// it allocates a Buffer sized to length, reads into it via r.ReadRangeAt,
// and flips the result to [0, n) so it is ready for consumption.
func Read(ctx context.Context, r RangeReader, offset, length int64) (*Buffer, error) {
	if length < 0 {
		return nil, fmt.Errorf("rangereader: length %d: %w", length, ErrInvalidArgument)
	}
	buf := NewBuffer(int(length))
	n, err := r.ReadRangeAt(ctx, offset, length, buf)
	if err != nil {
		return nil, err
	}
	buf.pos = int(n)
	buf.Flip()
	return buf, nil
}

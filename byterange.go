package rangereader

import "fmt"

// ByteRange is the half-open interval [Offset, Offset+Length) over a blob.
// It is the cache key shared by the memory and disk caches, and the basis
// for the disk cache's on-disk file naming.
type ByteRange struct {
	Offset int64
	Length int64
}

// End returns the exclusive end of the range (Offset + Length).
func (r ByteRange) End() int64 {
	return r.Offset + r.Length
}

// EndInclusive returns the inclusive end offset, matching the disk cache's
// "<range_start>_<range_end_inclusive>.range" file naming. For a
// zero-length range EndInclusive equals Offset.
func (r ByteRange) EndInclusive() int64 {
	if r.Length <= 0 {
		return r.Offset
	}
	return r.Offset + r.Length - 1
}

// String renders the range as "<offset>_<end_inclusive>", the disk cache's
// stable file-naming scheme.
func (r ByteRange) String() string {
	return fmt.Sprintf("%d_%d", r.Offset, r.EndInclusive())
}

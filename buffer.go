package rangereader

// Buffer is a minimal stand-in for the caller-owned, position-tracking
// target buffer of the range-reader contract: writes
// land at the buffer's current cursor and advance it, with no implicit
// "flip" (preparing the buffer for reading) performed by the writer. Callers
// that want a byte slice prepared for reading should use [Read], which
// allocates and flips a Buffer for them.
//
// Buffer is not safe for concurrent use by multiple goroutines; each read
// call should use its own Buffer.
type Buffer struct {
	data     []byte
	pos      int
	readOnly bool
}

// NewBuffer allocates a Buffer with room for size bytes at the cursor.
func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// WrapBuffer returns a Buffer that writes into the given slice starting at
// its beginning. The slice's length is the buffer's capacity.
func WrapBuffer(p []byte) *Buffer {
	return &Buffer{data: p}
}

// ReadOnlyBuffer returns a Buffer that rejects every write, for exercising
// the "read-only target" validation edge case in tests.
func ReadOnlyBuffer(p []byte) *Buffer {
	return &Buffer{data: p, readOnly: true}
}

// Remaining reports how many bytes can still be written at the cursor.
func (b *Buffer) Remaining() int {
	if b == nil {
		return 0
	}
	return len(b.data) - b.pos
}

// ReadOnly reports whether the buffer rejects writes.
func (b *Buffer) ReadOnly() bool {
	return b != nil && b.readOnly
}

// Position returns the current cursor offset.
func (b *Buffer) Position() int {
	if b == nil {
		return 0
	}
	return b.pos
}

// Write implements io.Writer: it copies p at the cursor and advances the
// cursor by the number of bytes copied. It never prepares the buffer for
// reading (no flip) — that is the caller's responsibility.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.readOnly {
		return 0, ErrInvalidArgument
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

// Flip prepares the buffer for reading: the readable region becomes
// [0, Position()) and the cursor resets to 0.
func (b *Buffer) Flip() {
	b.data = b.data[:b.pos]
	b.pos = 0
}

// Bytes returns the buffer's backing slice as currently written.
func (b *Buffer) Bytes() []byte {
	return b.data
}

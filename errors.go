package rangereader

import "errors"

// Sentinel errors forming the error taxonomy every RangeReader implementation
// and decorator is expected to surface. Backends and decorators wrap these
// with context (source identifier, offending range) via fmt.Errorf's %w.
var (
	// ErrInvalidArgument is returned for a negative offset/length, a nil or
	// too-small target buffer, a non-positive block size, or conflicting
	// cache configuration.
	ErrInvalidArgument = errors.New("rangereader: invalid argument")

	// ErrNotFound is returned when a blob does not exist at the backend.
	ErrNotFound = errors.New("rangereader: not found")

	// ErrUnauthorized is returned on an authentication failure.
	ErrUnauthorized = errors.New("rangereader: unauthorized")

	// ErrForbidden is returned when the backend denies access to an
	// otherwise-authenticated caller.
	ErrForbidden = errors.New("rangereader: forbidden")

	// ErrUnsupportedRangeRequests is returned when a server refuses
	// byte-range requests.
	ErrUnsupportedRangeRequests = errors.New("rangereader: server does not support range requests")

	// ErrClosed is returned for any operation attempted after Close.
	ErrClosed = errors.New("rangereader: reader is closed")

	// ErrNotWritable is returned by channel adapters on write/truncate.
	ErrNotWritable = errors.New("rangereader: not writable")

	// ErrNoProvider is returned by the provider registry/factory when no
	// provider matches a configuration.
	ErrNoProvider = errors.New("rangereader: no provider matched")

	// ErrConfigError is returned for malformed or conflicting configuration.
	ErrConfigError = errors.New("rangereader: configuration error")
)

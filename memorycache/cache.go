// Package memorycache implements the weight-bounded, block-aligned
// in-memory cache: a RangeReader decorator keyed by ByteRange blocks, with
// optional internal block alignment, an optional prefetched header buffer,
// TTL expiry, and LRU weight/size eviction.
package memorycache

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"weak"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/tileverse/rangereader"
)

// box holds cached bytes behind a weak pointer when WithSoftValues is set,
// so the runtime may reclaim it under memory pressure — the cache slot
// (and its weight accounting) stays authoritative; only the payload can
// vanish, turning a would-be hit into a miss that re-loads from the
// delegate.
type box struct{ data []byte }

type entry struct {
	key        rangereader.ByteRange
	weight     int64
	strong     []byte
	weakRef    weak.Pointer[box]
	lastAccess time.Time
}

func (e *entry) data() ([]byte, bool) {
	if e.strong != nil {
		return e.strong, true
	}
	b := e.weakRef.Value()
	if b == nil {
		return nil, false
	}
	return b.data, true
}

// MemoryCachingReader is a RangeReader decorator implementing the cache contract.
// It is safe for concurrent use.
type MemoryCachingReader struct {
	delegate rangereader.RangeReader
	logger   *slog.Logger

	maximumWeight int64
	maximumSize   int
	expireAfter   time.Duration
	softValues    bool
	blockSize     int64
	headerSize    int64

	header []byte

	mu           sync.Mutex
	order        *list.List // front = MRU
	byKey        map[rangereader.ByteRange]*list.Element
	currentBytes int64

	loadGroup singleflight.Group
	counters  counters
	collector *promCollector
}

var _ rangereader.RangeReader = (*MemoryCachingReader)(nil)

// Option configures a MemoryCachingReader.
type Option func(*MemoryCachingReader) error

// WithMaximumWeight caps total cached bytes; eviction is triggered once
// this is exceeded. Mutually exclusive with WithMaximumSize.
func WithMaximumWeight(bytes int64) Option {
	return func(r *MemoryCachingReader) error {
		if bytes <= 0 {
			return fmt.Errorf("memorycache: maximum weight %d: %w", bytes, rangereader.ErrInvalidArgument)
		}
		r.maximumWeight = bytes
		return nil
	}
}

// WithMaximumSize caps total entry count. Mutually exclusive with
// WithMaximumWeight.
func WithMaximumSize(entries int) Option {
	return func(r *MemoryCachingReader) error {
		if entries <= 0 {
			return fmt.Errorf("memorycache: maximum size %d: %w", entries, rangereader.ErrInvalidArgument)
		}
		r.maximumSize = entries
		return nil
	}
}

// WithExpireAfterAccess sets a TTL counted from an entry's last access;
// entries past the TTL are evicted lazily on access or during Cleanup.
func WithExpireAfterAccess(d time.Duration) Option {
	return func(r *MemoryCachingReader) error {
		if d <= 0 {
			return fmt.Errorf("memorycache: expire-after-access %s: %w", d, rangereader.ErrInvalidArgument)
		}
		r.expireAfter = d
		return nil
	}
}

// WithSoftValues permits GC-style reclamation of cached payloads under
// memory pressure (via weak.Pointer); the slot's presence remains
// authoritative for weight accounting.
func WithSoftValues() Option {
	return func(r *MemoryCachingReader) error {
		r.softValues = true
		return nil
	}
}

// WithBlockSize enables internal block alignment: the cache key becomes
// the enclosing block and reads are served as slices of cached blocks.
// Must not be negative; omit this option (or pass 0) to cache exactly the
// requested range on each miss.
func WithBlockSize(n int64) Option {
	return func(r *MemoryCachingReader) error {
		if n < 0 {
			return fmt.Errorf("memorycache: block size %d: %w", n, rangereader.ErrInvalidArgument)
		}
		r.blockSize = n
		return nil
	}
}

// WithHeaderSize prefetches [0, n) into a header buffer at construction and
// serves the part of a read that falls inside that prefix from the header
// buffer, without cache traffic; the rest of the read goes through the
// cache.
func WithHeaderSize(n int64) Option {
	return func(r *MemoryCachingReader) error {
		if n <= 0 {
			return fmt.Errorf("memorycache: header size %d: %w", n, rangereader.ErrInvalidArgument)
		}
		r.headerSize = n
		return nil
	}
}

// WithLogger sets the logger used for cache diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *MemoryCachingReader) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// WithRegisterer registers the cache's CacheStats as Prometheus metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *MemoryCachingReader) error {
		if reg == nil {
			return nil
		}
		r.collector = newPromCollector(r, prometheus.Labels{"source": r.delegate.SourceIdentifier()})
		return reg.Register(r.collector)
	}
}

// New wraps delegate with a weight-bounded in-memory cache. ctx is used
// only for the optional header-buffer prefetch performed during
// construction.
func New(ctx context.Context, delegate rangereader.RangeReader, opts ...Option) (*MemoryCachingReader, error) {
	if delegate == nil {
		return nil, fmt.Errorf("memorycache: nil delegate: %w", rangereader.ErrInvalidArgument)
	}
	r := &MemoryCachingReader{
		delegate: delegate,
		logger:   slog.Default(),
		order:    list.New(),
		byKey:    make(map[rangereader.ByteRange]*list.Element),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.maximumWeight > 0 && r.maximumSize > 0 {
		return nil, fmt.Errorf("memorycache: maximum-weight and maximum-size are mutually exclusive: %w", rangereader.ErrConfigError)
	}

	if r.headerSize > 0 {
		size, known, err := delegate.Size(ctx)
		if err != nil {
			return nil, err
		}
		h := r.headerSize
		if known && h > size {
			h = size
		}
		if h > 0 {
			buf, err := delegate.ReadRange(ctx, 0, h)
			if err != nil {
				return nil, fmt.Errorf("memorycache: header prefetch: %w", err)
			}
			r.header = buf.Bytes()
		}
	}

	r.logger.Info("memorycache: constructed", "source", delegate.SourceIdentifier(),
		"block_size", r.blockSize, "header_size", len(r.header))
	return r, nil
}

func (r *MemoryCachingReader) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, r, offset, length, target)
}

func (r *MemoryCachingReader) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, r, offset, length)
}

// ReadRangeNoFlip is the Hook implementation; offset/length are already
// validated and clipped by Validate.
func (r *MemoryCachingReader) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	var written int64

	if len(r.header) > 0 && offset < int64(len(r.header)) {
		n := r.copyFromHeader(offset, length, target)
		written += n
		offset += n
		length -= n
		if length == 0 {
			return written, nil
		}
	}

	if r.blockSize <= 0 {
		n, err := r.readExact(ctx, offset, length, target)
		return written + n, err
	}

	n, err := r.readAligned(ctx, offset, length, target)
	return written + n, err
}

func (r *MemoryCachingReader) copyFromHeader(offset, length int64, target *rangereader.Buffer) int64 {
	end := offset + length
	if end > int64(len(r.header)) {
		end = int64(len(r.header))
	}
	if end <= offset {
		return 0
	}
	n, _ := target.Write(r.header[offset:end])
	return int64(n)
}

// readExact caches exactly the requested [offset, offset+length) range
// (block alignment disabled).
func (r *MemoryCachingReader) readExact(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	key := rangereader.ByteRange{Offset: offset, Length: length}
	data, err := r.getOrLoad(ctx, key, func() (*rangereader.Buffer, error) {
		return r.delegate.ReadRange(ctx, key.Offset, key.Length)
	})
	if err != nil {
		return 0, err
	}
	n, err := target.Write(data)
	return int64(n), err
}

// readAligned decomposes the request into the blocks it touches and serves
// each from cache, loading on miss.
func (r *MemoryCachingReader) readAligned(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	size, known, err := r.delegate.Size(ctx)
	if err != nil {
		return 0, err
	}

	var written int64
	blockIndex := offset / r.blockSize
	pos := offset
	remaining := length

	for remaining > 0 {
		blockStart := blockIndex * r.blockSize
		blockEnd := blockStart + r.blockSize
		if known && blockEnd > size {
			blockEnd = size
		}
		if blockEnd <= blockStart {
			break // past EOF
		}
		blockLen := blockEnd - blockStart
		key := rangereader.ByteRange{Offset: blockStart, Length: blockLen}

		data, err := r.getOrLoad(ctx, key, func() (*rangereader.Buffer, error) {
			return r.delegate.ReadRange(ctx, key.Offset, key.Length)
		})
		if err != nil {
			return written, err
		}

		copyStart := pos - blockStart
		if copyStart >= int64(len(data)) {
			break
		}
		copyEnd := copyStart + remaining
		if copyEnd > int64(len(data)) {
			copyEnd = int64(len(data))
		}
		n, err := target.Write(data[copyStart:copyEnd])
		written += int64(n)
		pos += int64(n)
		remaining -= int64(n)
		if err != nil {
			return written, err
		}
		if int64(n) < copyEnd-copyStart {
			break // short delegate read at EOF
		}
		blockIndex++
	}
	return written, nil
}

// getOrLoad returns the cached bytes for key, loading via fetch on miss.
// Concurrent callers for the same key share a single delegate load
// (singleflight), matching the coalescing guarantee.
func (r *MemoryCachingReader) getOrLoad(ctx context.Context, key rangereader.ByteRange, fetch func() (*rangereader.Buffer, error)) ([]byte, error) {
	if data, ok := r.get(key); ok {
		r.counters.hits.Add(1)
		return data, nil
	}
	r.counters.misses.Add(1)

	result, err, _ := r.loadGroup.Do(key.String(), func() (any, error) {
		if data, ok := r.get(key); ok {
			return data, nil
		}
		r.counters.loads.Add(1)
		buf, err := fetch()
		if err != nil {
			r.counters.loadFailures.Add(1)
			return nil, err
		}
		data := buf.Bytes()
		r.insert(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (r *MemoryCachingReader) get(key rangereader.ByteRange) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if r.expireAfter > 0 && time.Since(e.lastAccess) > r.expireAfter {
		r.removeLocked(el)
		return nil, false
	}
	data, ok := e.data()
	if !ok {
		// Soft value was reclaimed by the GC; treat as a miss and drop the
		// now-empty slot so weight accounting stays accurate.
		r.removeLocked(el)
		return nil, false
	}
	e.lastAccess = time.Now()
	r.order.MoveToFront(el)
	return data, true
}

func (r *MemoryCachingReader) insert(key rangereader.ByteRange, data []byte) {
	weight := int64(len(data))

	if r.maximumWeight > 0 && weight > r.maximumWeight {
		r.logger.Debug("memorycache: entry exceeds maximum weight, not caching", "key", key, "weight", weight)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.byKey[key]; ok {
		// Another goroutine inserted it first (e.g. header overlap race);
		// keep the existing entry.
		r.order.MoveToFront(el)
		_ = el
		return
	}

	e := &entry{key: key, weight: weight, lastAccess: time.Now()}
	if r.softValues {
		e.weakRef = weak.Make(&box{data: data})
	} else {
		e.strong = data
	}

	el := r.order.PushFront(e)
	r.byKey[key] = el
	r.currentBytes += weight

	r.evictLocked()
}

func (r *MemoryCachingReader) evictLocked() {
	for r.shouldEvictLocked() {
		back := r.order.Back()
		if back == nil {
			return
		}
		r.removeLocked(back)
	}
}

func (r *MemoryCachingReader) shouldEvictLocked() bool {
	if r.maximumWeight > 0 && r.currentBytes > r.maximumWeight {
		return true
	}
	if r.maximumSize > 0 && len(r.byKey) > r.maximumSize {
		return true
	}
	return false
}

func (r *MemoryCachingReader) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(r.byKey, e.key)
	r.order.Remove(el)
	r.currentBytes -= e.weight
}

// Cleanup sweeps entries past their expire-after-access TTL. Expiry is
// always also checked lazily on Get; Cleanup is for callers that want to
// proactively release memory from cold entries (e.g. on a timer).
func (r *MemoryCachingReader) Cleanup() {
	if r.expireAfter <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *list.Element
	for el := r.order.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*entry)
		if time.Since(e.lastAccess) > r.expireAfter {
			r.removeLocked(el)
		}
	}
}

// Clear evicts every cached entry.
func (r *MemoryCachingReader) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order.Init()
	r.byKey = make(map[rangereader.ByteRange]*list.Element)
	r.currentBytes = 0
}

// Stats returns a snapshot of cache counters and estimated size.
func (r *MemoryCachingReader) Stats() Stats {
	r.mu.Lock()
	entryCount := int64(len(r.byKey))
	size := r.currentBytes
	r.mu.Unlock()
	return r.counters.snapshot(entryCount, size)
}

func (r *MemoryCachingReader) Size(ctx context.Context) (int64, bool, error) {
	return r.delegate.Size(ctx)
}

func (r *MemoryCachingReader) SourceIdentifier() string {
	return "memory-cached:" + r.delegate.SourceIdentifier()
}

// Close clears every cached entry (as Clear does) and closes the delegate.
func (r *MemoryCachingReader) Close() error {
	r.Clear()
	if r.collector != nil {
		// Best-effort: nothing registers without a Registerer reference
		// here, so unregistering is left to the caller that holds it.
		r.collector = nil
	}
	r.logger.Info("memorycache: closed", "source", r.delegate.SourceIdentifier())
	return r.delegate.Close()
}

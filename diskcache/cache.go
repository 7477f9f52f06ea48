// Package diskcache implements the persistent, block-aligned disk cache:
// a RangeReader decorator that materializes block loads as files under a
// per-source directory, shared across instances pointing at the same
// source and root.
package diskcache

import (
	"container/list"
	"context"
	"crypto/md5" //nolint:gosec // content-addressing only, not a security boundary
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tileverse/rangereader"
)

const (
	fileExt         = ".range"
	dirPerm         = 0o700
	filePerm        = 0o600
	defaultRootName = "tileverse-rangereader-cache"
)

type entry struct {
	key  rangereader.ByteRange
	size int64 // on-disk file size; authoritative weight
}

// DiskCachingReader is a RangeReader decorator implementing the cache contract.
type DiskCachingReader struct {
	delegate rangereader.RangeReader
	logger   *slog.Logger

	root           string
	scopeDir       string
	maxCacheBytes  int64
	deleteOnClose  bool
	blockSize      int64

	mu           sync.Mutex
	order        *list.List // front = MRU
	byKey        map[rangereader.ByteRange]*list.Element
	currentBytes int64

	loadGroup singleflight.Group
	counters  counters
}

var _ rangereader.RangeReader = (*DiskCachingReader)(nil)

// Option configures a DiskCachingReader.
type Option func(*DiskCachingReader) error

// WithCacheDirectory sets the cache root directory. Defaults to
// "<os.TempDir()>/tileverse-rangereader-cache".
func WithCacheDirectory(dir string) Option {
	return func(r *DiskCachingReader) error {
		if dir == "" {
			return fmt.Errorf("diskcache: empty cache directory: %w", rangereader.ErrInvalidArgument)
		}
		r.root = dir
		return nil
	}
}

// WithMaxCacheSizeBytes caps the sum of cached file sizes; exceeding it
// triggers LRU eviction. Must be positive.
func WithMaxCacheSizeBytes(n int64) Option {
	return func(r *DiskCachingReader) error {
		if n <= 0 {
			return fmt.Errorf("diskcache: max cache size %d: %w", n, rangereader.ErrInvalidArgument)
		}
		r.maxCacheBytes = n
		return nil
	}
}

// WithDeleteOnClose removes the source scope's files when Close is called.
func WithDeleteOnClose() Option {
	return func(r *DiskCachingReader) error {
		r.deleteOnClose = true
		return nil
	}
}

// WithBlockSize enables block-aligned caching; 0 (the default) caches
// exactly the requested range on each miss.
func WithBlockSize(n int64) Option {
	return func(r *DiskCachingReader) error {
		if n < 0 {
			return fmt.Errorf("diskcache: block size %d: %w", n, rangereader.ErrInvalidArgument)
		}
		r.blockSize = n
		return nil
	}
}

// WithLogger sets the logger used for cache diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *DiskCachingReader) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// New wraps delegate with a disk-backed cache, scanning any existing
// on-disk entries for delegate.SourceIdentifier() into the in-memory index.
func New(delegate rangereader.RangeReader, opts ...Option) (*DiskCachingReader, error) {
	if delegate == nil {
		return nil, fmt.Errorf("diskcache: nil delegate: %w", rangereader.ErrInvalidArgument)
	}
	r := &DiskCachingReader{
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
	if r.root == "" {
		r.root = filepath.Join(os.TempDir(), defaultRootName)
	}
	r.scopeDir = filepath.Join(r.root, sourceHash(delegate.SourceIdentifier()))

	if err := os.MkdirAll(r.scopeDir, dirPerm); err != nil {
		return nil, fmt.Errorf("diskcache: creating source scope %q: %w", r.scopeDir, err)
	}
	if err := r.scan(); err != nil {
		return nil, err
	}

	r.logger.Info("diskcache: constructed", "source", delegate.SourceIdentifier(), "scope", r.scopeDir, "entries", len(r.byKey))
	return r, nil
}

// sourceHash returns the first 8 hex characters of MD5(id) for the source
// scope directory name, matching the stable on-disk layout.
func sourceHash(id string) string {
	sum := md5.Sum([]byte(id)) //nolint:gosec // content-addressing only, not a security boundary
	return hex.EncodeToString(sum[:])[:8]
}

// scan populates the in-memory index from whatever .range files already
// exist in the source scope, using each file's on-disk size as its weight.
func (r *DiskCachingReader) scan() error {
	entries, err := os.ReadDir(r.scopeDir)
	if err != nil {
		return fmt.Errorf("diskcache: scanning %q: %w", r.scopeDir, err)
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		key, ok := parseFileName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := &entry{key: key, size: info.Size()}
		el := r.order.PushFront(e)
		r.byKey[key] = el
		r.currentBytes += e.size
	}
	return nil
}

// DirStats summarizes the on-disk footprint of one source scope directory
// within a cache root, for diagnostic reporting (e.g. the CLI's
// "cache stat" subcommand).
type DirStats struct {
	SourceHash string
	EntryCount int64
	TotalBytes int64
}

// Inspect walks every source scope directory under root and reports its
// on-disk entry count and total size, without constructing a
// DiskCachingReader or requiring a live delegate.
func Inspect(root string) ([]DirStats, error) {
	scopes, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("diskcache: inspecting %q: %w", root, err)
	}

	var out []DirStats
	for _, scope := range scopes {
		if !scope.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, scope.Name()))
		if err != nil {
			return nil, fmt.Errorf("diskcache: inspecting %q: %w", scope.Name(), err)
		}
		stats := DirStats{SourceHash: scope.Name()}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := parseFileName(f.Name()); !ok {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			stats.EntryCount++
			stats.TotalBytes += info.Size()
		}
		out = append(out, stats)
	}
	return out, nil
}

// parseFileName parses "<offset>_<end_inclusive>.range" into a ByteRange.
func parseFileName(name string) (rangereader.ByteRange, bool) {
	if filepath.Ext(name) != fileExt {
		return rangereader.ByteRange{}, false
	}
	base := name[:len(name)-len(fileExt)]
	var offset, endInclusive int64
	if _, err := fmt.Sscanf(base, "%d_%d", &offset, &endInclusive); err != nil {
		return rangereader.ByteRange{}, false
	}
	if endInclusive < offset {
		return rangereader.ByteRange{}, false
	}
	return rangereader.ByteRange{Offset: offset, Length: endInclusive - offset + 1}, true
}

func (r *DiskCachingReader) filePath(key rangereader.ByteRange) string {
	return filepath.Join(r.scopeDir, key.String()+fileExt)
}

func (r *DiskCachingReader) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, r, offset, length, target)
}

func (r *DiskCachingReader) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, r, offset, length)
}

// ReadRangeNoFlip is the Hook implementation; offset/length have already
// been validated and clipped by Validate.
func (r *DiskCachingReader) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	if r.blockSize <= 0 {
		return r.readExact(ctx, offset, length, target)
	}
	return r.readAligned(ctx, offset, length, target)
}

// readExact caches exactly the requested [offset, offset+length) range.
func (r *DiskCachingReader) readExact(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	key := rangereader.ByteRange{Offset: offset, Length: length}
	data, err := r.getOrLoad(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := target.Write(data)
	return int64(n), err
}

type blockPlan struct {
	key        rangereader.ByteRange
	withinBlock int64
	toRead      int64
}

// readAligned decomposes the request into blocks, loads the single block
// synchronously or fans out in parallel for multiple blocks, then copies
// each block's slice into target in order.
func (r *DiskCachingReader) readAligned(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	size, known, err := r.delegate.Size(ctx)
	if err != nil {
		return 0, err
	}

	var plans []blockPlan
	pos := offset
	remaining := length
	for remaining > 0 {
		blockIndex := pos / r.blockSize
		blockStart := blockIndex * r.blockSize
		blockEnd := blockStart + r.blockSize
		if known && blockEnd > size {
			blockEnd = size
		}
		if blockEnd <= blockStart {
			break
		}
		withinBlock := pos - blockStart
		avail := blockEnd - pos
		toRead := remaining
		if toRead > avail {
			toRead = avail
		}
		plans = append(plans, blockPlan{
			key:         rangereader.ByteRange{Offset: blockStart, Length: blockEnd - blockStart},
			withinBlock: withinBlock,
			toRead:      toRead,
		})
		pos += toRead
		remaining -= toRead
	}

	if len(plans) == 0 {
		return 0, nil
	}

	datas := make([][]byte, len(plans))
	if len(plans) == 1 {
		data, err := r.getOrLoad(ctx, plans[0].key)
		if err != nil {
			return 0, err
		}
		datas[0] = data
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range plans {
			i, p := i, p
			g.Go(func() error {
				data, err := r.getOrLoad(gctx, p.key)
				if err != nil {
					return err
				}
				datas[i] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	var written int64
	for i, p := range plans {
		data := datas[i]
		end := p.withinBlock + p.toRead
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		if end <= p.withinBlock {
			break
		}
		n, err := target.Write(data[p.withinBlock:end])
		written += int64(n)
		if err != nil {
			return written, err
		}
		if int64(n) < end-p.withinBlock {
			break // short read at EOF
		}
	}
	return written, nil
}

// getOrLoad returns the bytes for key, reading from the backing file on an
// index hit (with external-deletion recovery) or loading from the delegate
// and persisting a new file on a miss. Concurrent callers for the same key
// coalesce into a single load.
func (r *DiskCachingReader) getOrLoad(ctx context.Context, key rangereader.ByteRange) ([]byte, error) {
	if data, ok := r.readFromDisk(key); ok {
		r.counters.hits.Add(1)
		return data, nil
	}
	r.counters.misses.Add(1)

	result, err, _ := r.loadGroup.Do(key.String(), func() (any, error) {
		if data, ok := r.readFromDisk(key); ok {
			return data, nil
		}
		return r.loadAndStore(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// readFromDisk serves key from the in-memory index, recovering from
// external deletion by invalidating the entry and reporting a miss so the
// caller re-loads.
func (r *DiskCachingReader) readFromDisk(key rangereader.ByteRange) ([]byte, bool) {
	r.mu.Lock()
	el, ok := r.byKey[key]
	if ok {
		r.order.MoveToFront(el)
	}
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(r.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("diskcache: indexed file missing, invalidating", "key", key)
			r.invalidate(key)
			return nil, false
		}
		return nil, false
	}
	return data, true
}

func (r *DiskCachingReader) invalidate(key rangereader.ByteRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.byKey[key]; ok {
		e := el.Value.(*entry)
		delete(r.byKey, key)
		r.order.Remove(el)
		r.currentBytes -= e.size
	}
}

// loadAndStore fetches key from the delegate and persists it to disk. If
// writeFile fails (e.g. a concurrent external deleter removed the scope
// directory), it returns the freshly-loaded bytes directly without
// re-caching rather than failing the read.
func (r *DiskCachingReader) loadAndStore(ctx context.Context, key rangereader.ByteRange) ([]byte, error) {
	r.counters.loads.Add(1)
	buf, err := r.delegate.ReadRange(ctx, key.Offset, key.Length)
	if err != nil {
		r.counters.loadFailures.Add(1)
		return nil, err
	}
	data := buf.Bytes()

	actualKey := key
	if int64(len(data)) < key.Length {
		// Partial EOF read: the key must reflect what was actually read.
		actualKey = rangereader.ByteRange{Offset: key.Offset, Length: int64(len(data))}
	}

	if err := r.writeFile(actualKey, data); err != nil {
		r.logger.Debug("diskcache: bypassing cache for this load", "key", actualKey, "error", err)
		return data, nil
	}
	return data, nil
}

// writeFile persists data as actualKey's backing file via write-to-temp-
// then-rename, enforces the oversize policy, and evicts to stay within
// maxCacheBytes.
func (r *DiskCachingReader) writeFile(key rangereader.ByteRange, data []byte) error {
	weight := int64(len(data))
	if r.maxCacheBytes > 0 && weight > r.maxCacheBytes {
		return fmt.Errorf("diskcache: entry of %d bytes exceeds max cache size %d", weight, r.maxCacheBytes)
	}

	tmp, err := os.CreateTemp(r.scopeDir, "load-*.tmp")
	if err != nil {
		return fmt.Errorf("diskcache: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: setting permissions: %w", err)
	}

	target := r.filePath(key)
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diskcache: renaming into place: %w", err)
	}

	r.insert(key, weight)
	return nil
}

func (r *DiskCachingReader) insert(key rangereader.ByteRange, weight int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.byKey[key]; ok {
		r.order.MoveToFront(el)
		return
	}

	e := &entry{key: key, size: weight}
	el := r.order.PushFront(e)
	r.byKey[key] = el
	r.currentBytes += weight

	r.evictLocked()
}

func (r *DiskCachingReader) evictLocked() {
	if r.maxCacheBytes <= 0 {
		return
	}
	for r.currentBytes > r.maxCacheBytes {
		back := r.order.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		path := r.filePath(e.key)
		delete(r.byKey, e.key)
		r.order.Remove(back)
		r.currentBytes -= e.size
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Debug("diskcache: failed to remove evicted file", "path", path, "error", err)
		}
	}
}

// Clear invalidates every cached entry, deleting their backing files.
func (r *DiskCachingReader) Clear() error {
	r.mu.Lock()
	var paths []string
	for key := range r.byKey {
		paths = append(paths, r.filePath(key))
	}
	r.order.Init()
	r.byKey = make(map[rangereader.ByteRange]*list.Element)
	r.currentBytes = 0
	r.mu.Unlock()

	var firstErr error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns a snapshot of cache counters and estimated size, where
// size is the sum of on-disk file sizes.
func (r *DiskCachingReader) Stats() Stats {
	r.mu.Lock()
	entryCount := int64(len(r.byKey))
	size := r.currentBytes
	r.mu.Unlock()
	return r.counters.snapshot(entryCount, size)
}

func (r *DiskCachingReader) Size(ctx context.Context) (int64, bool, error) {
	return r.delegate.Size(ctx)
}

func (r *DiskCachingReader) SourceIdentifier() string {
	return "disk-cached:" + r.delegate.SourceIdentifier()
}

// Close closes the delegate, removing the source scope directory tree
// first if WithDeleteOnClose was set.
func (r *DiskCachingReader) Close() error {
	if r.deleteOnClose {
		if err := os.RemoveAll(r.scopeDir); err != nil {
			r.logger.Debug("diskcache: failed removing source scope on close", "scope", r.scopeDir, "error", err)
		}
	}
	r.logger.Info("diskcache: closed", "source", r.delegate.SourceIdentifier(), "scope", r.scopeDir)
	return r.delegate.Close()
}

// Package rangereader provides a composable pipeline for resolving small,
// random byte-range reads against large, immutable blobs — local files,
// HTTP servers, or object-storage services.
//
// The engineering value is concentrated in the caching/alignment core, not
// the storage-backend adapters:
//
//   - [RangeReader] is the capability every node in a pipeline shares.
//   - [BlockAlignedReader] rounds requests up to block boundaries before
//     delegating, trading read amplification for fewer round trips.
//   - The memorycache and diskcache subpackages layer weight-bounded,
//     block-aligned caches in front of any RangeReader.
//   - The channel subpackage adapts a RangeReader to stream-like
//     sequential and seekable facades whose Read takes a context.
//   - The provider subpackage selects and configures a backend for a URI.
//
// Concrete backends (local file, HTTP, S3, Azure Blob, GCS) live under
// backend/ and are treated as opaque RangeReaders by the core — see
// [Hook] for the extension point a backend or decorator implements.
//
// # Quick start
//
//	ctx := context.Background()
//	f, _ := backendfile.Open("testdata/blob.bin")
//	aligned, _ := rangereader.NewBlockAlignedReader(f, 4096)
//	cached, _ := memorycache.New(ctx, aligned, memorycache.WithMaximumWeight(64<<20))
//	buf, err := rangereader.Read(ctx, cached, 100, 50)
package rangereader

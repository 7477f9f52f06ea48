// Package http implements a RangeReader backed by RFC 7233 HTTP range
// requests, discovering size and validators via a HEAD request plus a
// 0-byte range probe before serving ranged GETs.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/tileverse/rangereader"
)

// Source reads a remote resource via HTTP range requests.
type Source struct {
	url                   string
	client                *nethttp.Client
	headers               nethttp.Header
	size                  int64
	sizeKnown             bool
	etag                  string
	lastModified          string
	sourceID              string
	useConditionalHeaders bool
}

var _ rangereader.RangeReader = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests. Defaults to
// http.DefaultClient.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithHeaders sets additional headers sent on every request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers != nil {
			s.headers = headers.Clone()
		}
	}
}

// WithSourceID overrides the default source identifier used for cache
// scoping.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithConditionalHeaders enables If-Match/If-Unmodified-Since on range
// requests once an ETag or Last-Modified is known. Disabled by default
// because some servers reject conditional range requests outright.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.useConditionalHeaders = true
	}
}

// New probes url (HEAD plus a 0-byte range GET) to discover its size and
// returns a Source reading it via range requests.
func New(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{url: url, client: nethttp.DefaultClient}
	for _, opt := range opts {
		opt(s)
	}

	size, known, etag, lastModified, err := s.fetchMetadata(ctx)
	if err != nil {
		return nil, err
	}
	s.size = size
	s.sizeKnown = known
	s.etag = etag
	s.lastModified = lastModified
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	return s, nil
}

func (s *Source) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, s, offset, length, target)
}

func (s *Source) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, s, offset, length)
}

// ReadRangeNoFlip issues a single Range GET and copies the body into
// target; offset/length have already been validated and clipped by
// Validate when the size is known.
func (s *Source) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	end := offset + length - 1
	resp, err := s.rangeRequest(ctx, offset, end, true)
	if err != nil {
		return 0, fmt.Errorf("http: %s: range %d-%d: %w", s.sourceID, offset, end, err)
	}
	if resp.StatusCode == nethttp.StatusPreconditionFailed && s.hasConditionalHeaders() {
		resp.Body.Close()
		resp, err = s.rangeRequest(ctx, offset, end, false)
		if err != nil {
			return 0, fmt.Errorf("http: %s: range %d-%d: %w", s.sourceID, offset, end, err)
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return 0, nil
	case nethttp.StatusUnauthorized:
		return 0, fmt.Errorf("http: %s: %w", s.sourceID, rangereader.ErrUnauthorized)
	case nethttp.StatusForbidden:
		return 0, fmt.Errorf("http: %s: %w", s.sourceID, rangereader.ErrForbidden)
	case nethttp.StatusNotFound:
		return 0, fmt.Errorf("http: %s: %w", s.sourceID, rangereader.ErrNotFound)
	case nethttp.StatusOK:
		return 0, fmt.Errorf("http: %s: server returned 200 for a range request: %w", s.sourceID, rangereader.ErrUnsupportedRangeRequests)
	default:
		return 0, fmt.Errorf("http: %s: range request: %s", s.sourceID, resp.Status)
	}

	n, err := io.CopyN(target, resp.Body, length)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("http: %s: reading range body: %w", s.sourceID, err)
	}
	return n, nil
}

func (s *Source) Size(context.Context) (int64, bool, error) {
	return s.size, s.sizeKnown, nil
}

func (s *Source) SourceIdentifier() string {
	return s.sourceID
}

func (s *Source) Close() error {
	return nil
}

func (s *Source) defaultSourceID() string {
	switch {
	case s.etag != "":
		return fmt.Sprintf("url:%s|etag:%s", s.url, s.etag)
	case s.lastModified != "":
		return fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.lastModified, s.size)
	default:
		return fmt.Sprintf("url:%s|size:%d", s.url, s.size)
	}
}

func (s *Source) fetchMetadata(ctx context.Context) (size int64, known bool, etag, lastModified string, err error) {
	if resp, headErr := s.doHead(ctx); headErr == nil {
		if resp.ContentLength >= 0 {
			size, known = resp.ContentLength, true
		}
		etag = resp.Header.Get("ETag")
		lastModified = resp.Header.Get("Last-Modified")
		resp.Body.Close()
	}

	rangeSize, rangeKnown, rangeETag, rangeLastModified, err := s.rangeProbe(ctx)
	if err != nil {
		return 0, false, "", "", err
	}
	if known && rangeKnown && size != rangeSize {
		return 0, false, "", "", fmt.Errorf("http: content size mismatch: head=%d range=%d", size, rangeSize)
	}
	if rangeKnown {
		size, known = rangeSize, true
	}
	if etag == "" {
		etag = rangeETag
	}
	if lastModified == "" {
		lastModified = rangeLastModified
	}
	return size, known, etag, lastModified, nil
}

// rangeProbe issues a 0-byte range GET, which both confirms the server
// honors range requests and (via Content-Range) reports the total size.
func (s *Source) rangeProbe(ctx context.Context) (size int64, known bool, etag, lastModified string, err error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet, false)
	if err != nil {
		return 0, false, "", "", err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, "", "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != nethttp.StatusPartialContent {
		if resp.StatusCode == nethttp.StatusOK {
			return 0, false, "", "", nil // server ignores ranges; the probe reports no size (a HEAD size still stands)
		}
		return 0, false, "", "", fmt.Errorf("http: range probe: %s", resp.Status)
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return 0, false, "", "", nil
	}
	size, err = parseContentRange(crange)
	if err != nil {
		return 0, false, "", "", err
	}
	return size, true, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

func (s *Source) doHead(ctx context.Context) (*nethttp.Response, error) {
	req, err := s.newRequest(ctx, nethttp.MethodHead, false)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

func (s *Source) newRequest(ctx context.Context, method string, withConditions bool) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if method == nethttp.MethodGet && withConditions && s.useConditionalHeaders {
		if s.etag != "" && req.Header.Get("If-Match") == "" {
			req.Header.Set("If-Match", s.etag)
		}
		if s.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return req, nil
}

func (s *Source) rangeRequest(ctx context.Context, off, end int64, withConditions bool) (*nethttp.Response, error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet, withConditions)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	return s.client.Do(req)
}

func (s *Source) hasConditionalHeaders() bool {
	if !s.useConditionalHeaders {
		return false
	}
	return s.etag != "" || s.lastModified != ""
}

func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}

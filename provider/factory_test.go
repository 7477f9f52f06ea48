package provider_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileverse/rangereader"
	"github.com/tileverse/rangereader/internal/testutil"
	"github.com/tileverse/rangereader/provider"
)

type fakeProvider struct {
	id                string
	order             int
	available         bool
	canProcess        func(provider.Config) bool
	canProcessHeaders func(string, http.Header) bool
	data              []byte
}

func (p *fakeProvider) ID() string                 { return p.id }
func (p *fakeProvider) Order() int                 { return p.order }
func (p *fakeProvider) IsAvailable() bool          { return p.available }
func (p *fakeProvider) Parameters() []provider.Parameter { return nil }

func (p *fakeProvider) CanProcess(cfg provider.Config) bool {
	if p.canProcess != nil {
		return p.canProcess(cfg)
	}
	return false
}

func (p *fakeProvider) CanProcessHeaders(uri string, h http.Header) bool {
	if p.canProcessHeaders != nil {
		return p.canProcessHeaders(uri, h)
	}
	return false
}

func (p *fakeProvider) Create(ctx context.Context, cfg provider.Config) (rangereader.RangeReader, error) {
	return testutil.NewByteSource(p.data, p.id+":"+cfg.URI), nil
}

func schemeMatch(scheme string) func(provider.Config) bool {
	return func(cfg provider.Config) bool {
		return strings.HasPrefix(cfg.URI, scheme+"://")
	}
}

func TestFactorySelectsUniqueMatch(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "file", order: 1, available: true, canProcess: schemeMatch("file"), data: []byte("hello")})
	reg.Register(&fakeProvider{id: "http", order: 2, available: true, canProcess: schemeMatch("http")})

	f := provider.NewFactory(reg)
	r, err := f.Create(ctx, provider.Config{URI: "file://x"})
	require.NoError(t, err)
	assert.Equal(t, "file:file://x", r.SourceIdentifier())
}

func TestFactoryForcedProviderID(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "file", order: 1, available: true, canProcess: schemeMatch("file")})
	reg.Register(&fakeProvider{id: "http", order: 2, available: true, canProcess: schemeMatch("http")})

	f := provider.NewFactory(reg)
	r, err := f.Create(ctx, provider.Config{URI: "http://x", ProviderID: "file"})
	require.NoError(t, err)
	assert.Equal(t, "file:http://x", r.SourceIdentifier())
}

func TestFactoryNoProviderMatches(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "file", order: 1, available: true, canProcess: schemeMatch("file")})

	f := provider.NewFactory(reg)
	_, err := f.Create(ctx, provider.Config{URI: "s3://x"})
	assert.ErrorIs(t, err, rangereader.ErrNoProvider)
}

func TestFactoryUnavailableForcedProvider(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "s3", order: 1, available: false, canProcess: schemeMatch("s3")})

	f := provider.NewFactory(reg)
	_, err := f.Create(ctx, provider.Config{URI: "s3://x", ProviderID: "s3"})
	assert.ErrorIs(t, err, rangereader.ErrNoProvider)
}

func TestFactoryDisambiguatesViaProbeHeaders(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{
		id: "aws-s3", order: 2, available: true,
		canProcess:        schemeMatch("http"),
		canProcessHeaders: func(_ string, h http.Header) bool { return h.Get("x-amz-request-id") != "" },
	})
	reg.Register(&fakeProvider{
		id: "generic-http", order: 1, available: true,
		canProcess: schemeMatch("http"),
	})

	f := provider.NewFactory(reg)
	f.Prober = func(ctx context.Context, uri string) (http.Header, error) {
		return http.Header{"X-Amz-Request-Id": []string{"abc"}}, nil
	}

	r, err := f.Create(ctx, provider.Config{URI: "http://bucket.s3.amazonaws.com/key"})
	require.NoError(t, err)
	assert.Equal(t, "aws-s3:http://bucket.s3.amazonaws.com/key", r.SourceIdentifier())
}

func TestFactoryDisambiguationFallsBackToOrderWhenProbeInconclusive(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "b", order: 2, available: true, canProcess: schemeMatch("http")})
	reg.Register(&fakeProvider{id: "a", order: 1, available: true, canProcess: schemeMatch("http")})

	f := provider.NewFactory(reg)
	f.Prober = func(ctx context.Context, uri string) (http.Header, error) {
		return http.Header{}, nil
	}

	r, err := f.Create(ctx, provider.Config{URI: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "a:http://x", r.SourceIdentifier())
}

func TestFactoryWrapsWithMemoryCacheWhenEnabled(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "file", order: 1, available: true, canProcess: schemeMatch("file"), data: make([]byte, 1000)})

	f := provider.NewFactory(reg)
	r, err := f.Create(ctx, provider.Config{
		URI: "file://x",
		Values: map[string]any{
			provider.ParamMemoryCacheEnabled: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "memory-cached:file:file://x", r.SourceIdentifier())
}

func TestFactoryBlockAlignedRequiresBlockSize(t *testing.T) {
	ctx := context.Background()
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "file", order: 1, available: true, canProcess: schemeMatch("file")})

	f := provider.NewFactory(reg)
	_, err := f.Create(ctx, provider.Config{
		URI: "file://x",
		Values: map[string]any{
			provider.ParamMemoryCacheEnabled:      true,
			provider.ParamMemoryCacheBlockAligned: true,
		},
	})
	assert.ErrorIs(t, err, rangereader.ErrConfigError)
}

func TestRegistryAvailableExcludesUnavailableAndSortsByOrder(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeProvider{id: "z", order: 5, available: true})
	reg.Register(&fakeProvider{id: "a", order: 1, available: true})
	reg.Register(&fakeProvider{id: "skip", order: 0, available: false})

	available := reg.Available()
	require.Len(t, available, 2)
	assert.Equal(t, "a", available[0].ID())
	assert.Equal(t, "z", available[1].ID())
}

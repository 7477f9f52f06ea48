package register_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileverse/rangereader/backend/register"
	"github.com/tileverse/rangereader/provider"
)

func newTestRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	register.All(reg)
	return reg
}

func TestFileProviderClaimsFileURIs(t *testing.T) {
	reg := newTestRegistry(t)
	p, ok := reg.Get("file")
	require.True(t, ok)
	assert.True(t, p.CanProcess(provider.Config{URI: "file:///tmp/data.bin"}))
	assert.False(t, p.CanProcess(provider.Config{URI: "s3://bucket/key"}))
}

func TestS3ProviderClaimsS3URIsAndAmzHeaders(t *testing.T) {
	reg := newTestRegistry(t)
	p, ok := reg.Get("s3")
	require.True(t, ok)
	assert.True(t, p.CanProcess(provider.Config{URI: "s3://bucket/key"}))
	assert.False(t, p.CanProcess(provider.Config{URI: "https://example.com/key"}))

	h := http.Header{"X-Amz-Request-Id": []string{"abc"}}
	assert.True(t, p.CanProcessHeaders("https://example.com/key", h))
	assert.False(t, p.CanProcessHeaders("https://example.com/key", http.Header{}))
}

func TestAzureProviderClaimsAzureAndBlobSchemes(t *testing.T) {
	reg := newTestRegistry(t)
	p, ok := reg.Get("azure")
	require.True(t, ok)
	assert.True(t, p.CanProcess(provider.Config{URI: "azure://account/container/blob"}))
	assert.True(t, p.CanProcess(provider.Config{URI: "blob://account/container/blob"}))
}

func TestGCSProviderClaimsGSScheme(t *testing.T) {
	reg := newTestRegistry(t)
	p, ok := reg.Get("gcs")
	require.True(t, ok)
	assert.True(t, p.CanProcess(provider.Config{URI: "gs://bucket/object"}))
}

func TestHTTPProviderIsGenericFallback(t *testing.T) {
	reg := newTestRegistry(t)
	p, ok := reg.Get("http")
	require.True(t, ok)
	assert.True(t, p.CanProcess(provider.Config{URI: "https://example.com/data.bin"}))
	assert.False(t, p.CanProcessHeaders("https://example.com/data.bin", http.Header{"X-Amz-Request-Id": []string{"x"}}))
}

func TestAvailableOrdersByOrderThenID(t *testing.T) {
	reg := newTestRegistry(t)
	ids := make([]string, 0, 5)
	for _, p := range reg.Available() {
		ids = append(ids, p.ID())
	}
	assert.Equal(t, []string{"file", "s3", "azure", "gcs", "http"}, ids)
}

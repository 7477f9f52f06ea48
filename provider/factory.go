package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tileverse/rangereader"
	"github.com/tileverse/rangereader/memorycache"
)

// Factory resolves a Config to a concrete RangeReader using a Registry,
// implementing the provider-selection algorithm: a forced provider ID,
// else the unique matching provider, else a disambiguation probe among
// several matches.
type Factory struct {
	registry *Registry

	// Prober performs the disambiguation probe; overridable in tests.
	// The default issues a real HTTP HEAD request.
	Prober func(ctx context.Context, uri string) (http.Header, error)
}

// NewFactory returns a Factory backed by registry.
func NewFactory(registry *Registry) *Factory {
	return &Factory{registry: registry, Prober: httpHeadProbe}
}

func httpHeadProbe(ctx context.Context, uri string) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return resp.Header, nil
}

// Create resolves cfg to a RangeReader: selecting a provider (directly, by
// uniqueness, or via disambiguation probe), invoking its Create, then
// wrapping the result with memory caching and block alignment per the
// standard caching parameters.
func (f *Factory) Create(ctx context.Context, cfg Config) (rangereader.RangeReader, error) {
	p, err := f.selectProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r, err := p.Create(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: create: %w", p.ID(), err)
	}

	return f.applyStandardCaching(ctx, r, cfg)
}

func (f *Factory) selectProvider(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.ProviderID != "" {
		p, ok := f.registry.Get(cfg.ProviderID)
		if !ok || !p.IsAvailable() {
			return nil, fmt.Errorf("provider: forced provider %q: %w", cfg.ProviderID, rangereader.ErrNoProvider)
		}
		return p, nil
	}

	var matches []Provider
	for _, p := range f.registry.Available() {
		if p.CanProcess(cfg) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("provider: no provider can process %q: %w", cfg.URI, rangereader.ErrNoProvider)
	case 1:
		return matches[0], nil
	default:
		return f.disambiguate(ctx, cfg, matches)
	}
}

// disambiguate performs a single probe and picks the first matching
// provider whose CanProcessHeaders accepts the response, falling back to
// the first by Order if the probe fails or none match.
func (f *Factory) disambiguate(ctx context.Context, cfg Config, matches []Provider) (Provider, error) {
	headers, err := f.Prober(ctx, cfg.URI)
	if err != nil {
		return matches[0], nil
	}
	for _, p := range matches {
		if p.CanProcessHeaders(cfg.URI, headers) {
			return p, nil
		}
	}
	return matches[0], nil
}

// applyStandardCaching wraps r with a memory cache according to the
// standard caching parameters recognized by every provider. Block alignment
// is applied only as the memory cache's internal alignment, so it has no
// effect unless the memory cache is enabled.
func (f *Factory) applyStandardCaching(ctx context.Context, r rangereader.RangeReader, cfg Config) (rangereader.RangeReader, error) {
	if !cfg.Bool(ParamMemoryCacheEnabled, false) {
		return r, nil
	}

	var opts []memorycache.Option
	if cfg.Bool(ParamMemoryCacheBlockAligned, false) {
		blockSize := cfg.Int(ParamMemoryCacheBlockSize, 0)
		if blockSize <= 0 {
			return nil, fmt.Errorf("provider: %s requires a positive %s: %w", ParamMemoryCacheBlockAligned, ParamMemoryCacheBlockSize, rangereader.ErrConfigError)
		}
		opts = append(opts, memorycache.WithBlockSize(int64(blockSize)))
	}

	cached, err := memorycache.New(ctx, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider: wrapping with memory cache: %w", err)
	}
	return cached, nil
}

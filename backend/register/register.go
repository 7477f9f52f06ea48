// Package register wires the file, http, s3, azure, and gcs backends into
// a provider.Registry. It is a separate package (rather than an init() in
// each backend) so callers opt into exactly the backends they want linked.
package register

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"cloud.google.com/go/storage"

	"github.com/tileverse/rangereader"
	backendazure "github.com/tileverse/rangereader/backend/azure"
	backendfile "github.com/tileverse/rangereader/backend/file"
	backendgcs "github.com/tileverse/rangereader/backend/gcs"
	backendhttp "github.com/tileverse/rangereader/backend/http"
	backends3 "github.com/tileverse/rangereader/backend/s3"
	"github.com/tileverse/rangereader/provider"
)

func envEnabled(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

// All registers every backend provider into reg.
func All(reg *provider.Registry) {
	File(reg)
	HTTP(reg)
	S3(reg)
	Azure(reg)
	GCS(reg)
}

// File registers the "file" provider, handling file:// URIs.
func File(reg *provider.Registry) {
	reg.Register(&fileProvider{})
}

type fileProvider struct{}

func (fileProvider) ID() string        { return "file" }
func (fileProvider) Order() int        { return 10 }
func (fileProvider) IsAvailable() bool { return envEnabled("IO_TILEVERSE_RANGEREADER_FILE") }

func (fileProvider) Parameters() []provider.Parameter { return nil }

func (fileProvider) CanProcess(cfg provider.Config) bool {
	u, err := url.Parse(cfg.URI)
	return err == nil && u.Scheme == "file"
}

func (fileProvider) CanProcessHeaders(string, http.Header) bool { return false }

func (fileProvider) Create(ctx context.Context, cfg provider.Config) (rangereader.RangeReader, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, err
	}
	return backendfile.Open(u.Path)
}

// HTTP registers the "http" provider, handling http:// and https:// URIs.
func HTTP(reg *provider.Registry) {
	reg.Register(&httpProvider{})
}

type httpProvider struct{}

func (httpProvider) ID() string        { return "http" }
func (httpProvider) Order() int        { return 50 }
func (httpProvider) IsAvailable() bool { return envEnabled("IO_TILEVERSE_RANGEREADER_HTTP") }

func (httpProvider) Parameters() []provider.Parameter {
	return []provider.Parameter{
		{Key: "io.tileverse.rangereader.http.conditional-headers", Title: "Conditional headers", Type: provider.TypeBool, Group: "http"},
	}
}

func (httpProvider) CanProcess(cfg provider.Config) bool {
	u, err := url.Parse(cfg.URI)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// CanProcessHeaders only disambiguates against a more specific provider
// (e.g. s3); as the generic fallback it never claims a response.
func (httpProvider) CanProcessHeaders(string, http.Header) bool { return false }

func (httpProvider) Create(ctx context.Context, cfg provider.Config) (rangereader.RangeReader, error) {
	var opts []backendhttp.Option
	if cfg.Bool("io.tileverse.rangereader.http.conditional-headers", false) {
		opts = append(opts, backendhttp.WithConditionalHeaders())
	}
	return backendhttp.New(ctx, cfg.URI, opts...)
}

// S3 registers the "s3" provider, handling s3:// URIs and disambiguating
// generic http(s) URLs that turn out to be served by AWS S3.
func S3(reg *provider.Registry) {
	reg.Register(&s3Provider{})
}

type s3Provider struct{}

func (s3Provider) ID() string        { return "s3" }
func (s3Provider) Order() int        { return 20 }
func (s3Provider) IsAvailable() bool { return envEnabled("IO_TILEVERSE_RANGEREADER_S3") }

func (s3Provider) Parameters() []provider.Parameter {
	return []provider.Parameter{
		{Key: "io.tileverse.rangereader.s3.region", Title: "Region", Type: provider.TypeString, Group: "s3"},
		{Key: "io.tileverse.rangereader.s3.aws-access-key-id", Title: "Access key ID", Type: provider.TypeString, Group: "s3", Masked: true},
		{Key: "io.tileverse.rangereader.s3.aws-secret-access-key", Title: "Secret access key", Type: provider.TypeString, Group: "s3", Masked: true},
		{Key: "io.tileverse.rangereader.s3.use-default-credentials-provider", Title: "Use default credentials provider", Type: provider.TypeBool, Group: "s3", Default: true},
		{Key: "io.tileverse.rangereader.s3.force-path-style", Title: "Force path style", Type: provider.TypeBool, Group: "s3"},
		{Key: "io.tileverse.rangereader.s3.endpoint", Title: "Endpoint override", Type: provider.TypeString, Group: "s3"},
	}
}

func (s3Provider) CanProcess(cfg provider.Config) bool {
	u, err := url.Parse(cfg.URI)
	return err == nil && u.Scheme == "s3"
}

// CanProcessHeaders accepts responses carrying an x-amz-* header, the
// signal that a generic http(s) URL is actually served by S3.
func (s3Provider) CanProcessHeaders(_ string, h http.Header) bool {
	for key := range h {
		if strings.HasPrefix(strings.ToLower(key), "x-amz-") {
			return true
		}
	}
	return false
}

func (s3Provider) Create(ctx context.Context, cfg provider.Config) (rangereader.RangeReader, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, err
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	endpoint, _ := cfg.String("io.tileverse.rangereader.s3.endpoint")
	if endpoint == "" {
		region, _ := cfg.String("io.tileverse.rangereader.s3.region")
		endpoint = "s3." + region + ".amazonaws.com"
	}
	accessKey, _ := cfg.String("io.tileverse.rangereader.s3.aws-access-key-id")
	secretKey, _ := cfg.String("io.tileverse.rangereader.s3.aws-secret-access-key")

	return backends3.New(ctx, backends3.Config{
		Endpoint:        endpoint,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Secure:          true,
		ForcePathStyle:  cfg.Bool("io.tileverse.rangereader.s3.force-path-style", false),
	}, bucket, key)
}

// Azure registers the "azure" provider, handling azure:// and blob://
// URIs.
func Azure(reg *provider.Registry) {
	reg.Register(&azureProvider{})
}

type azureProvider struct{}

func (azureProvider) ID() string        { return "azure" }
func (azureProvider) Order() int        { return 30 }
func (azureProvider) IsAvailable() bool { return envEnabled("IO_TILEVERSE_RANGEREADER_AZURE") }

func (azureProvider) Parameters() []provider.Parameter {
	return []provider.Parameter{
		{Key: "io.tileverse.rangereader.azure.account-name", Title: "Storage account name", Type: provider.TypeString, Group: "azure"},
		{Key: "io.tileverse.rangereader.azure.use-default-credentials-provider", Title: "Use default credentials provider", Type: provider.TypeBool, Group: "azure", Default: true},
	}
}

func (azureProvider) CanProcess(cfg provider.Config) bool {
	u, err := url.Parse(cfg.URI)
	return err == nil && (u.Scheme == "azure" || u.Scheme == "blob")
}

func (azureProvider) CanProcessHeaders(string, http.Header) bool { return false }

func (azureProvider) Create(ctx context.Context, cfg provider.Config) (rangereader.RangeReader, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, err
	}
	account, _ := cfg.String("io.tileverse.rangereader.azure.account-name")
	if account == "" {
		account = u.Host
	}
	serviceURL := "https://" + account + ".blob.core.windows.net/"

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return nil, rangereader.ErrInvalidArgument
	}
	return backendazure.New(ctx, serviceURL, azcore.TokenCredential(cred), parts[0], parts[1])
}

// GCS registers the "gcs" provider, handling gs:// URIs.
func GCS(reg *provider.Registry) {
	reg.Register(&gcsProvider{})
}

type gcsProvider struct{}

func (gcsProvider) ID() string        { return "gcs" }
func (gcsProvider) Order() int        { return 40 }
func (gcsProvider) IsAvailable() bool { return envEnabled("IO_TILEVERSE_RANGEREADER_GCS") }

func (gcsProvider) Parameters() []provider.Parameter {
	return []provider.Parameter{
		{Key: "io.tileverse.rangereader.gcs.project-id", Title: "Project ID", Type: provider.TypeString, Group: "gcs"},
	}
}

func (gcsProvider) CanProcess(cfg provider.Config) bool {
	u, err := url.Parse(cfg.URI)
	return err == nil && u.Scheme == "gs"
}

func (gcsProvider) CanProcessHeaders(string, http.Header) bool { return false }

func (gcsProvider) Create(ctx context.Context, cfg provider.Config) (rangereader.RangeReader, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return backendgcs.New(ctx, client, u.Host, strings.TrimPrefix(u.Path, "/"))
}

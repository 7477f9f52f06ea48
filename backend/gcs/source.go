// Package gcs implements a RangeReader backed by Google Cloud Storage via
// cloud.google.com/go/storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/tileverse/rangereader"
)

// Source reads one GCS object via ranged reads.
type Source struct {
	client *storage.Client
	bucket string
	object string
	size   int64
}

var _ rangereader.RangeReader = (*Source)(nil)

// New constructs a Source for bucket/object, probing its attributes for
// size.
func New(ctx context.Context, client *storage.Client, bucket, object string) (*Source, error) {
	attrs, err := client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: attrs for gs://%s/%s: %w", bucket, object, classifyObjectError(err))
	}
	return &Source{client: client, bucket: bucket, object: object, size: attrs.Size}, nil
}

func (s *Source) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, s, offset, length, target)
}

func (s *Source) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, s, offset, length)
}

// ReadRangeNoFlip opens a ranged object reader; offset/length have already
// been validated and clipped to Size by Validate.
func (s *Source) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewRangeReader(ctx, offset, length)
	if err != nil {
		return 0, fmt.Errorf("gcs: gs://%s/%s: range %d+%d: %w", s.bucket, s.object, offset, length, classifyObjectError(err))
	}
	defer r.Close()

	n, err := io.CopyN(target, r, length)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("gcs: gs://%s/%s: reading range body: %w", s.bucket, s.object, err)
	}
	return n, nil
}

func (s *Source) Size(context.Context) (int64, bool, error) {
	return s.size, true, nil
}

func (s *Source) SourceIdentifier() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

func (s *Source) Close() error {
	return nil
}

func classifyObjectError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w", rangereader.ErrNotFound)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 404:
			return fmt.Errorf("%w: %s", rangereader.ErrNotFound, gerr.Message)
		case 403:
			return fmt.Errorf("%w: %s", rangereader.ErrForbidden, gerr.Message)
		case 401:
			return fmt.Errorf("%w: %s", rangereader.ErrUnauthorized, gerr.Message)
		}
	}
	return err
}

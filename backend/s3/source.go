// Package s3 implements a RangeReader backed by an S3-compatible object
// store via github.com/minio/minio-go/v7.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tileverse/rangereader"
)

// Source reads one object from an S3-compatible bucket via ranged GETs.
type Source struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

var _ rangereader.RangeReader = (*Source)(nil)

// Config configures the underlying minio client.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Secure          bool
	Region          string
	ForcePathStyle  bool
}

// New constructs a Source for bucket/key, probing the object's size via a
// HEAD-equivalent StatObject call.
func New(ctx context.Context, cfg Config, bucket, key string) (*Source, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: bucketLookupType(cfg.ForcePathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: creating client for %s: %w", cfg.Endpoint, err)
	}

	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3: stat s3://%s/%s: %w", bucket, key, classifyObjectError(err))
	}

	return &Source{client: client, bucket: bucket, key: key, size: info.Size}, nil
}

func bucketLookupType(forcePathStyle bool) minio.BucketLookupType {
	if forcePathStyle {
		return minio.BucketLookupPath
	}
	return minio.BucketLookupAuto
}

func (s *Source) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, s, offset, length, target)
}

func (s *Source) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, s, offset, length)
}

// ReadRangeNoFlip issues a ranged GetObject; offset/length have already
// been validated and clipped to Size by Validate.
func (s *Source) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, offset+length-1); err != nil {
		return 0, fmt.Errorf("s3: s3://%s/%s: setting range %d+%d: %w", s.bucket, s.key, offset, length, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key, opts)
	if err != nil {
		return 0, fmt.Errorf("s3: s3://%s/%s: range %d+%d: %w", s.bucket, s.key, offset, length, classifyObjectError(err))
	}
	defer obj.Close()

	n, err := io.CopyN(target, obj, length)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("s3: s3://%s/%s: reading range body: %w", s.bucket, s.key, err)
	}
	return n, nil
}

func (s *Source) Size(context.Context) (int64, bool, error) {
	return s.size, true, nil
}

func (s *Source) SourceIdentifier() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

func (s *Source) Close() error {
	return nil
}

func classifyObjectError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", rangereader.ErrNotFound, resp.Message)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", rangereader.ErrForbidden, resp.Message)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %s", rangereader.ErrUnauthorized, resp.Message)
	default:
		return err
	}
}

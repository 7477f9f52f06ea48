// Package azure implements a RangeReader backed by Azure Blob Storage via
// github.com/Azure/azure-sdk-for-go/sdk/storage/azblob.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/tileverse/rangereader"
)

// Source reads one blob via ranged downloads.
type Source struct {
	client        *azblob.Client
	containerName string
	blobName      string
	size          int64
}

var _ rangereader.RangeReader = (*Source)(nil)

// New constructs a Source for containerName/blobName using cred, probing
// the blob's properties for its size.
func New(ctx context.Context, serviceURL string, cred azcore.TokenCredential, containerName, blobName string) (*Source, error) {
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: creating client for %s: %w", serviceURL, err)
	}

	props, err := client.ServiceClient().NewContainerClient(containerName).NewBlobClient(blobName).GetProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: properties for %s/%s: %w", containerName, blobName, classifyBlobError(err))
	}
	if props.ContentLength == nil {
		return nil, fmt.Errorf("azure: %s/%s: content length not reported", containerName, blobName)
	}

	return &Source{client: client, containerName: containerName, blobName: blobName, size: *props.ContentLength}, nil
}

func (s *Source) ReadRangeAt(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	return rangereader.Validate(ctx, s, offset, length, target)
}

func (s *Source) ReadRange(ctx context.Context, offset, length int64) (*rangereader.Buffer, error) {
	return rangereader.Read(ctx, s, offset, length)
}

// ReadRangeNoFlip issues a ranged DownloadStream; offset/length have
// already been validated and clipped to Size by Validate.
func (s *Source) ReadRangeNoFlip(ctx context.Context, offset, length int64, target *rangereader.Buffer) (int64, error) {
	resp, err := s.client.DownloadStream(ctx, s.containerName, s.blobName, &azblob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: length},
	})
	if err != nil {
		return 0, fmt.Errorf("azure: %s/%s: range %d+%d: %w", s.containerName, s.blobName, offset, length, classifyBlobError(err))
	}
	defer resp.Body.Close()

	n, err := io.CopyN(target, resp.Body, length)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("azure: %s/%s: reading range body: %w", s.containerName, s.blobName, err)
	}
	return n, nil
}

func (s *Source) Size(context.Context) (int64, bool, error) {
	return s.size, true, nil
}

func (s *Source) SourceIdentifier() string {
	return fmt.Sprintf("azure://%s/%s", s.containerName, s.blobName)
}

func (s *Source) Close() error {
	return nil
}

func classifyBlobError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return fmt.Errorf("%w: %s", rangereader.ErrNotFound, respErr.ErrorCode)
		case 403:
			return fmt.Errorf("%w: %s", rangereader.ErrForbidden, respErr.ErrorCode)
		case 401:
			return fmt.Errorf("%w: %s", rangereader.ErrUnauthorized, respErr.ErrorCode)
		}
	}
	return err
}

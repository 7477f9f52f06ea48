package s3

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/tileverse/rangereader"
)

func TestClassifyObjectErrorMapsKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"NoSuchKey", rangereader.ErrNotFound},
		{"NoSuchBucket", rangereader.ErrNotFound},
		{"AccessDenied", rangereader.ErrForbidden},
		{"InvalidAccessKeyId", rangereader.ErrUnauthorized},
		{"SignatureDoesNotMatch", rangereader.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := minio.ErrorResponse{Code: tc.code, Message: "boom"}
			got := classifyObjectError(err)
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestClassifyObjectErrorPassesThroughUnknownCodes(t *testing.T) {
	err := minio.ErrorResponse{Code: "InternalError", Message: "oops"}
	got := classifyObjectError(err)
	assert.NotErrorIs(t, got, rangereader.ErrNotFound)
}

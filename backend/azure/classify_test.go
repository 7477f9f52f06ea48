package azure

import (
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"

	"github.com/tileverse/rangereader"
)

func newResponseError(statusCode int, code string) error {
	return &azcore.ResponseError{StatusCode: statusCode, ErrorCode: code, RawResponse: &http.Response{StatusCode: statusCode}}
}

func TestClassifyBlobErrorMapsKnownStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, rangereader.ErrNotFound},
		{http.StatusForbidden, rangereader.ErrForbidden},
		{http.StatusUnauthorized, rangereader.ErrUnauthorized},
	}
	for _, tc := range cases {
		got := classifyBlobError(newResponseError(tc.status, "BlobNotFound"))
		assert.ErrorIs(t, got, tc.want)
	}
}

func TestClassifyBlobErrorPassesThroughOtherErrors(t *testing.T) {
	got := classifyBlobError(newResponseError(http.StatusInternalServerError, "InternalError"))
	assert.NotErrorIs(t, got, rangereader.ErrNotFound)
}

package apierror

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	req := require.New(t)

	resp := New(CodeDuplicateMessageID, "")
	req.Equal("error", resp.Status)
	req.Equal(CodeDuplicateMessageID, resp.Error.Code)
	req.Equal("Message ID already exists", resp.Error.Message)
	req.Equal("The provided message_id must be unique", resp.Error.Details)

	resp = New(CodeMissingField, "The field 'sender' is required and cannot be empty")
	req.Equal("A required field is missing or empty", resp.Error.Message)
	req.Equal("The field 'sender' is required and cannot be empty", resp.Error.Details)

	resp = New("SOMETHING_ELSE", "leaked detail")
	req.Equal(CodeServerError, resp.Error.Code)
	req.Equal("Internal server error", resp.Error.Message)
}

func TestWrite(t *testing.T) {
	req := require.New(t)
	rec := httptest.NewRecorder()

	Write(rec, http.StatusNotFound, CodeNotFound, "")

	req.Equal(http.StatusNotFound, rec.Code)
	req.Equal("application/json", rec.Header().Get("Content-Type"))

	var resp Response
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("error", resp.Status)
	req.Equal(CodeNotFound, resp.Error.Code)
	req.Equal("No results found", resp.Error.Message)
	req.Equal("No messages were found for the given criteria", resp.Error.Details)
}

func TestCatalogueCoversEveryCode(t *testing.T) {
	for _, code := range []string{
		CodeInvalidFormat, CodeMissingField, CodeInvalidSender, CodeDuplicateMessageID,
		CodeNotFound, CodeServerError, CodeUnauthorized, CodeRateLimitExceeded, CodeForbidden,
	} {
		resp := New(code, "")
		require.Equal(t, code, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Message, code)
		require.NotEmpty(t, resp.Error.Details, code)
	}
}

// Package apierror renders the JSON error envelope shared by handlers and
// middleware:
//
//	{"status":"error","error":{"code":"...","message":"...","details":"..."}}
package apierror

import (
	"encoding/json"
	"net/http"

	"github.com/eldtechnologies/chatmsg/internal/metrics"
)

// Error codes. Clients branch on these, so they are stable.
const (
	CodeInvalidFormat      = "INVALID_FORMAT"
	CodeMissingField       = "MISSING_FIELD"
	CodeInvalidSender      = "INVALID_SENDER"
	CodeDuplicateMessageID = "DUPLICATE_MESSAGE_ID"
	CodeNotFound           = "NOT_FOUND"
	CodeServerError        = "SERVER_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeForbidden          = "FORBIDDEN"
)

// Body is the "error" object of the envelope.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Response is the full error envelope.
type Response struct {
	Status string `json:"status"`
	Error  Body   `json:"error"`
}

type entry struct {
	message string
	details string
}

var catalogue = map[string]entry{
	CodeInvalidFormat:      {"Invalid message format", "The provided message does not meet validation rules"},
	CodeMissingField:       {"A required field is missing or empty", "One or more required fields are missing or blank"},
	CodeInvalidSender:      {"Invalid sender value", "Allowed values are user, system"},
	CodeDuplicateMessageID: {"Message ID already exists", "The provided message_id must be unique"},
	CodeNotFound:           {"No results found", "No messages were found for the given criteria"},
	CodeServerError:        {"Internal server error", "Unexpected error while processing request"},
	CodeUnauthorized:       {"Invalid or missing API key", "You must provide a valid x-api-key header"},
	CodeRateLimitExceeded:  {"Rate limit exceeded", "Too many requests in a short period. Please try again later."},
	CodeForbidden:          {"Temporarily blocked", "Too many rate limit violations from this address"},
}

// New builds the envelope for code. A non-empty details overrides the
// catalogue default.
func New(code, details string) Response {
	e, ok := catalogue[code]
	if !ok {
		code, e = CodeServerError, catalogue[CodeServerError]
	}
	if details == "" {
		details = e.details
	}
	return Response{
		Status: "error",
		Error:  Body{Code: code, Message: e.message, Details: details},
	}
}

// Write sends the envelope for code with the given HTTP status.
func Write(w http.ResponseWriter, status int, code, details string) {
	resp := New(code, details)
	metrics.RequestErrors.WithLabelValues(resp.Error.Code).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

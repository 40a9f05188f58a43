package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/chatmsg/internal/apierror"
	"github.com/eldtechnologies/chatmsg/internal/config"
	"github.com/eldtechnologies/chatmsg/internal/models"
	"github.com/eldtechnologies/chatmsg/internal/pipeline"
	"github.com/eldtechnologies/chatmsg/internal/store"
)

const testAPIKey = "test-key"

type testServer struct {
	*httptest.Server

	mu  sync.Mutex
	now time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Env:             config.EnvTest,
		DatabaseDriver:  config.DriverMemory,
		APIKey:          testAPIKey,
		CreateRateLimit: 3,
		RateLimitWindow: time.Minute,
		MaxBodyBytes:    8192,
	}

	ts := &testServer{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	msgStore := store.NewMemoryStore()
	p, err := pipeline.New(msgStore, pipeline.WithClock(func() time.Time {
		// Every call returns a distinct, increasing time.
		ts.mu.Lock()
		defer ts.mu.Unlock()
		ts.now = ts.now.Add(time.Second)
		return ts.now
	}))
	require.NoError(t, err)

	ts.Server = httptest.NewServer(NewRouter(zerolog.Nop(), cfg, msgStore, nil, p))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, withKey bool) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if withKey {
		r.Header.Set("X-API-Key", testAPIKey)
	}

	resp, err := ts.Client().Do(r)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) post(t *testing.T, body string) *http.Response {
	return ts.do(t, http.MethodPost, "/api/messages", body, true)
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	return ts.do(t, http.MethodGet, path, "", true)
}

func messageJSON(id, session, content, sender string) string {
	return fmt.Sprintf(`{"message_id":%q,"session_id":%q,"content":%q,"sender":%q}`, id, session, content, sender)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func requireError(t *testing.T, resp *http.Response, status int, code string) apierror.Body {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	body := decode[apierror.Response](t, resp)
	require.Equal(t, "error", body.Status)
	require.Equal(t, code, body.Error.Code)
	require.NotEmpty(t, body.Error.Message)
	return body.Error
}

func TestCreateMessage(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := ts.post(t, messageJSON("m1", "s1", "This is a badword test", "user"))
	req.Equal(http.StatusCreated, resp.StatusCode)

	msg := decode[models.Message](t, resp)
	req.Equal("m1", msg.MessageID)
	req.Equal("s1", msg.SessionID)
	req.Equal("this is a *** test", msg.Content)
	req.Equal("user", msg.Sender)
	req.False(msg.Timestamp.IsZero())
	req.NotNil(msg.Metadata)
	req.Equal(5, msg.Metadata.WordCount)
	req.Equal(18, msg.Metadata.CharacterCount)
	req.NotEmpty(msg.Metadata.ProcessedAt)
}

func TestCreateMessage_IgnoresClientTimestampAndMetadata(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := ts.post(t, `{"message_id":"m1","session_id":"s1","content":"hi there","sender":"system",
		"timestamp":"1999-01-01T00:00:00Z","metadata":{"word_count":99}}`)
	req.Equal(http.StatusCreated, resp.StatusCode)

	msg := decode[models.Message](t, resp)
	req.Equal(2024, msg.Timestamp.Year())
	req.Equal(2, msg.Metadata.WordCount)
}

func TestCreateMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		code    string
		details string
	}{
		{"invalid sender", messageJSON("m1", "s1", "hello", "bot"), http.StatusBadRequest, apierror.CodeInvalidSender, ""},
		{"empty sender", messageJSON("m1", "s1", "hello", ""), http.StatusBadRequest, apierror.CodeMissingField, "The field 'sender' is required and cannot be empty"},
		{"empty message id", messageJSON("", "s1", "hello", "user"), http.StatusBadRequest, apierror.CodeMissingField, "The field 'message_id' is required and cannot be empty"},
		{"absent session", `{"message_id":"m1","content":"x","sender":"user"}`, http.StatusBadRequest, apierror.CodeMissingField, "The field 'session_id' is required and cannot be empty"},
		{"absent content", `{"message_id":"m1","session_id":"s1","sender":"user"}`, http.StatusBadRequest, apierror.CodeMissingField, "The field 'content' is required and cannot be empty"},
		{"null sender", `{"message_id":"m1","session_id":"s1","content":"x","sender":null}`, http.StatusBadRequest, apierror.CodeMissingField, ""},
		{"long message id", messageJSON(strings.Repeat("a", 65), "s1", "x", "user"), http.StatusBadRequest, apierror.CodeInvalidFormat, ""},
		{"wrong type", `{"message_id":1,"session_id":"s1","content":"x","sender":"user"}`, http.StatusBadRequest, apierror.CodeInvalidFormat, ""},
		{"malformed json", `{"message_id":`, http.StatusBadRequest, apierror.CodeInvalidFormat, ""},
		{"empty object", `{}`, http.StatusBadRequest, apierror.CodeMissingField, "The field 'message_id' is required and cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			body := requireError(t, ts.post(t, tt.body), tt.status, tt.code)
			if tt.details != "" {
				require.Equal(t, tt.details, body.Details)
			}

			// Nothing was stored.
			requireError(t, ts.get(t, "/api/messages/s1"), http.StatusNotFound, apierror.CodeNotFound)
		})
	}
}

func TestCreateMessage_EmptyContentAllowed(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := ts.post(t, messageJSON("m1", "s1", "", "user"))
	req.Equal(http.StatusCreated, resp.StatusCode)
	msg := decode[models.Message](t, resp)
	req.Equal(0, msg.Metadata.WordCount)
	req.Equal(0, msg.Metadata.CharacterCount)
}

func TestCreateMessage_Duplicate(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	req.Equal(http.StatusCreated, ts.post(t, messageJSON("m1", "s1", "first", "user")).StatusCode)
	requireError(t, ts.post(t, messageJSON("m1", "s1", "second", "user")), http.StatusConflict, apierror.CodeDuplicateMessageID)

	msgs := decode[[]models.Message](t, ts.get(t, "/api/messages/s1"))
	req.Len(msgs, 1)
	req.Equal("first", msgs[0].Content)
}

func TestListMessages(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	for i := range 5 {
		sender := "user"
		if i%2 == 1 {
			sender = "system"
		}
		resp := ts.post(t, messageJSON(fmt.Sprintf("m%d", i), "s1", fmt.Sprintf("Message number %d", i), sender))
		req.Equal(http.StatusCreated, resp.StatusCode)
	}
	req.Equal(http.StatusCreated, ts.post(t, messageJSON("other", "s2", "elsewhere", "user")).StatusCode)

	contents := func(msgs []models.Message) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.Content
		}
		return out
	}

	resp := ts.get(t, "/api/messages/s1")
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(decode[[]models.Message](t, resp), 5)

	resp = ts.get(t, "/api/messages/s1?limit=2")
	req.Equal([]string{"message number 0", "message number 1"}, contents(decode[[]models.Message](t, resp)))

	resp = ts.get(t, "/api/messages/s1?limit=2&offset=2")
	req.Equal([]string{"message number 2", "message number 3"}, contents(decode[[]models.Message](t, resp)))

	resp = ts.get(t, "/api/messages/s1?sender=system")
	req.Equal([]string{"message number 1", "message number 3"}, contents(decode[[]models.Message](t, resp)))

	resp = ts.get(t, "/api/messages/s1?query=NUMBER%204")
	req.Equal([]string{"message number 4"}, contents(decode[[]models.Message](t, resp)))

	requireError(t, ts.get(t, "/api/messages/s1?query=absent"), http.StatusNotFound, apierror.CodeNotFound)
	requireError(t, ts.get(t, "/api/messages/s1?offset=5"), http.StatusNotFound, apierror.CodeNotFound)
	requireError(t, ts.get(t, "/api/messages/s1?sender=bot"), http.StatusBadRequest, apierror.CodeInvalidSender)

	body := requireError(t, ts.get(t, "/api/messages/unknown"), http.StatusNotFound, apierror.CodeNotFound)
	req.Equal("No messages were found for the given criteria", body.Details)
}

func TestListMessages_DefaultLimit(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	for i := range 12 {
		req.Equal(http.StatusCreated, ts.post(t, messageJSON(fmt.Sprintf("m%02d", i), "s1", "x", "user")).StatusCode)
	}

	req.Len(decode[[]models.Message](t, ts.get(t, "/api/messages/s1")), 10)
	req.Len(decode[[]models.Message](t, ts.get(t, "/api/messages/s1?limit=100")), 12)
}

func TestListMessages_BadPagination(t *testing.T) {
	ts := newTestServer(t)

	for _, query := range []string{"limit=101", "limit=-1", "offset=-1", "limit=ten", "offset=1.5"} {
		t.Run(query, func(t *testing.T) {
			requireError(t, ts.get(t, "/api/messages/s1?"+query), http.StatusBadRequest, apierror.CodeInvalidFormat)
		})
	}
}

func TestListMessages_UnusualSessionAndQuery(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	req.Equal(http.StatusCreated, ts.post(t, messageJSON("m1", "v1..2", "Open javascript:void(0) when a=b", "user")).StatusCode)
	req.Equal(http.StatusCreated, ts.post(t, messageJSON("m2", "v1..2", "plain", "system")).StatusCode)

	resp := ts.get(t, "/api/messages/v1..2")
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(decode[[]models.Message](t, resp), 2)

	for _, query := range []string{"javascript:", "a=b", "<b>"} {
		resp = ts.get(t, "/api/messages/v1..2?query="+url.QueryEscape(query))
		if query == "<b>" {
			requireError(t, resp, http.StatusNotFound, apierror.CodeNotFound)
			continue
		}
		req.Equal(http.StatusOK, resp.StatusCode, query)
		msgs := decode[[]models.Message](t, resp)
		req.Len(msgs, 1, query)
		req.Equal("m1", msgs[0].MessageID)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	requireError(t, ts.do(t, http.MethodPost, "/api/messages", messageJSON("m1", "s1", "x", "user"), false),
		http.StatusUnauthorized, apierror.CodeUnauthorized)
	requireError(t, ts.do(t, http.MethodGet, "/api/messages/s1", "", false),
		http.StatusUnauthorized, apierror.CodeUnauthorized)
}

func TestPublicEndpoints(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", false)
	req.Equal(http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	req.Equal("healthy", health["status"])

	resp = ts.do(t, http.MethodGet, "/api", "", false)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("chatmsg", decode[map[string]any](t, resp)["name"])

	resp = ts.do(t, http.MethodGet, "/metrics", "", false)
	req.Equal(http.StatusOK, resp.StatusCode)

	requireError(t, ts.do(t, http.MethodGet, "/nope", "", false), http.StatusNotFound, apierror.CodeNotFound)
}

func TestSecurityMiddlewareApplied(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", false)
	req.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))

	r, err := http.NewRequest(http.MethodPost, ts.URL+"/api/messages", strings.NewReader("message_id=m1"))
	req.NoError(err)
	r.Header.Set("Content-Type", "text/plain")
	r.Header.Set("X-API-Key", testAPIKey)
	resp, err = ts.Client().Do(r)
	req.NoError(err)
	defer resp.Body.Close()
	requireError(t, resp, http.StatusUnsupportedMediaType, apierror.CodeInvalidFormat)

	big := messageJSON("m1", "s1", strings.Repeat("a", 9000), "user")
	requireError(t, ts.post(t, big), http.StatusRequestEntityTooLarge, apierror.CodeInvalidFormat)
}

// Package chatmsg provides a client for the chatmsg message API.
package chatmsg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sender values accepted by the server.
const (
	SenderUser   = "user"
	SenderSystem = "system"
)

// Client is a chatmsg API client.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new client.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is an error envelope returned by the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("chatmsg error %d %s: %s (%s)", e.StatusCode, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("chatmsg error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// doRequest performs an HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Error.Code == "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		envelope.Error.StatusCode = resp.StatusCode
		return nil, &envelope.Error
	}

	return respBody, nil
}

// Metadata is the server-computed message metadata.
type Metadata struct {
	WordCount      int    `json:"word_count"`
	CharacterCount int    `json:"character_count"`
	ProcessedAt    string `json:"processed_at"`
}

// Message is a stored chat message.
type Message struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// CreateMessageRequest is the request body for creating a message.
type CreateMessageRequest struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
}

// CreateMessage stores a message and returns it as persisted.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (*Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/messages", body)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListOptions filters and paginates ListMessages. Zero values use the
// server defaults.
type ListOptions struct {
	Limit  int
	Offset int
	Sender string
	Query  string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Sender != "" {
		v.Set("sender", o.Sender)
	}
	if o.Query != "" {
		v.Set("query", o.Query)
	}
	return v
}

// ListMessages returns one page of a session's messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, sessionID string, opts ListOptions) ([]Message, error) {
	path := "/api/messages/" + url.PathEscape(sessionID)
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var messages []Message
	if err := json.Unmarshal(respBody, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// HealthCheck is a single dependency check.
type HealthCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]HealthCheck `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health. A degraded server answers 503, which is
// returned as an *APIError.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

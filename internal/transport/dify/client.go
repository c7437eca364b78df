// Package dify is the HTTP client for the Dify-style chatflow API used
// as the external analysis service. The service is a black box: we send
// it a retrievable preview URL and post-process its opaque response.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/paperstack/previewd/internal/domain"
	"github.com/paperstack/previewd/internal/metrics"
)

const (
	defaultTimeout = 60 * time.Second
	defaultUser    = "previewd"

	endpointChat      = "chat-messages"
	endpointVariables = "conversation-variables"
)

// Config holds the analysis service settings.
type Config struct {
	BaseURL string
	APIKey  string
	// User identifies the end user towards the analysis service.
	User    string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to the analysis service. All calls are bounded by the
// configured timeout; a timed-out call fails rather than blocking.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	user       string
	logger     *zap.Logger
}

// NewClient creates an analysis client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	user := cfg.User
	if user == "" {
		user = defaultUser
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		user:       user,
		logger:     logger,
	}
}

type chatRequest struct {
	Inputs       map[string]any `json:"inputs"`
	Query        string         `json:"query"`
	User         string         `json:"user"`
	ResponseMode string         `json:"response_mode"`
}

// SendPreview posts the preview URL as a remote-url image input and
// returns the blocking-mode response. The raw body is preserved in
// AnalysisResponse.Payload for downstream variable lookups.
func (c *Client) SendPreview(ctx context.Context, previewURL, query string) (domain.AnalysisResponse, error) {
	req := chatRequest{
		Inputs: map[string]any{
			"front_page": map[string]any{
				"type":            "image",
				"transfer_method": "remote_url",
				"url":             previewURL,
			},
		},
		Query:        query,
		User:         c.user,
		ResponseMode: "blocking",
	}

	body, err := c.post(ctx, endpointChat, "/chat-messages", req)
	if err != nil {
		return domain.AnalysisResponse{}, err
	}

	resp := domain.AnalysisResponse{
		ConversationID: gjson.GetBytes(body, "conversation_id").String(),
		MessageID:      gjson.GetBytes(body, "id").String(),
		Answer:         gjson.GetBytes(body, "answer").String(),
		CreatedAt:      gjson.GetBytes(body, "created_at").Int(),
		Payload:        body,
	}
	c.logger.Debug("Analysis response received",
		zap.String("conversation_id", resp.ConversationID),
		zap.String("message_id", resp.MessageID))
	return resp, nil
}

// ConversationVariable fetches one session variable by name. The second
// return is false when the session has no variable of that name.
func (c *Client) ConversationVariable(ctx context.Context, conversationID, name string) (any, bool, error) {
	path := fmt.Sprintf("/conversations/%s/variables?user=%s",
		url.PathEscape(conversationID), url.QueryEscape(c.user))

	body, err := c.get(ctx, endpointVariables, path)
	if err != nil {
		return nil, false, err
	}

	// Response shape: {"data": [{"name": ..., "value": ..., "value_type": ...}], "has_more": false}
	for _, item := range gjson.GetBytes(body, "data").Array() {
		if item.Get("name").String() != name {
			continue
		}
		return c.variableValue(name, item), true, nil
	}
	return nil, false, nil
}

// variableValue decodes a variable entry honoring its declared type:
// a "json" typed string value is parsed, degrading to the raw string.
func (c *Client) variableValue(name string, item gjson.Result) any {
	value := item.Get("value")
	if item.Get("value_type").String() == "json" && value.Type == gjson.String {
		var parsed any
		if err := json.Unmarshal([]byte(value.String()), &parsed); err != nil {
			c.logger.Warn("Failed to parse json-typed variable; returning raw value",
				zap.String("variable", name), zap.Error(err))
			return value.String()
		}
		return parsed
	}
	return value.Value()
}

func (c *Client) post(ctx context.Context, endpoint, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(endpoint, req)
}

func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.send(endpoint, req)
}

func (c *Client) send(endpoint string, req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.AnalysisRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AnalysisRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("analysis request: %v: %w", err, domain.ErrAnalysisService)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.AnalysisRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("read analysis response: %v: %w", err, domain.ErrAnalysisService)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.AnalysisRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, apiError(resp.StatusCode, body)
	}

	metrics.AnalysisRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

// apiError preserves the upstream message so callers can surface it as-is.
func apiError(status int, body []byte) error {
	detail := gjson.GetBytes(body, "message").String()
	if detail == "" {
		detail = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		detail = "invalid analysis API key: " + detail
	case http.StatusNotFound:
		detail = "analysis endpoint not found: " + detail
	}
	return fmt.Errorf("analysis API error %d: %s: %w", status, detail, domain.ErrAnalysisService)
}

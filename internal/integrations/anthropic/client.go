package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"support-agent/internal/domain"
	"support-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-5-20250929"
	apiVersion       = "2023-06-01"
	maxTokens        = 1024
	temperature      = 0.7
	defaultTimeout   = 25 * time.Second
	tokenParamSuffix = "/anthropic-token"
	modelParamSuffix = "/config/anthropic_model"
)

// messagesRequest is the minimal request shape for the Messages endpoint.
type messagesRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
	Metadata    *requestMetadata     `json:"metadata,omitempty"`
}

type requestMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

// messagesResponse is the minimal response shape returned by the Messages endpoint.
type messagesResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type credentials struct {
	apiKey string
	model  string
}

// Client sends single-reply requests to the Anthropic Messages API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	mu    sync.RWMutex
	creds *credentials
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client that reads its API key and model from SSM under
// paramPrefix. Both are fetched on first use; a failed fetch is retried on
// the next call.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("anthropic: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("anthropic: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + tokenParamSuffix
}

func (c *Client) modelParameterName() string {
	return c.paramPrefix + modelParamSuffix
}

// resolveCredentials returns cached credentials, loading them from SSM if
// no earlier load succeeded.
func (c *Client) resolveCredentials(ctx context.Context) (credentials, error) {
	c.mu.RLock()
	cached := c.creds
	c.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds != nil {
		return *c.creds, nil
	}
	creds, err := fetchCredentials(ctx, c.getter, c.tokenParameterName(), c.modelParameterName())
	if err != nil {
		return credentials{}, err
	}
	c.creds = &creds
	return creds, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func messagesURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

// SendMessage sends the persona, prior turns and the new user text and
// returns the concatenated text blocks of the reply.
func (c *Client) SendMessage(ctx context.Context, req domain.AssistantRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", errors.New("anthropic: user text must not be empty")
	}
	creds, err := c.resolveCredentials(ctx)
	if err != nil {
		return "", err
	}

	payload := messagesRequest{
		Model:       creds.model,
		System:      req.Persona,
		Messages:    normalizeMessages(req.History, req.Text),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if req.SessionID != "" {
		payload.Metadata = &requestMetadata{UserID: req.SessionID}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	url := messagesURL(c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", creds.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	raw, err := c.doJSONRequest(httpReq, url)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("anthropic: no text content in response")
	}
	return text, nil
}

// normalizeMessages builds the alternating user/assistant sequence the API
// requires: leading assistant turns are dropped and consecutive turns with
// the same role are merged.
func normalizeMessages(history []domain.ChatMessage, text string) []domain.ChatMessage {
	all := append(append([]domain.ChatMessage(nil), history...), domain.ChatMessage{Role: "user", Content: text})
	out := make([]domain.ChatMessage, 0, len(all))
	for _, m := range all {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if len(out) == 0 && m.Role != "user" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchCredentials(ctx context.Context, getter Getter, tokenName, modelName string) (credentials, error) {
	if getter == nil {
		return credentials{}, errors.New("anthropic: paramstore getter is nil")
	}
	values, err := getter.GetParameters(ctx, tokenName, modelName)
	var missing *paramstore.MissingParametersError
	if errors.As(err, &missing) && len(missing.Names) == 1 && missing.Names[0] == modelName {
		// The model parameter is optional; fall back to the token alone.
		values, err = getter.GetParameters(ctx, tokenName)
	}
	if err != nil {
		return credentials{}, fmt.Errorf("anthropic: fetch parameters: %w", err)
	}

	var tp tokenPayload
	if err := json.Unmarshal([]byte(values[tokenName]), &tp); err != nil {
		return credentials{}, fmt.Errorf("anthropic: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return credentials{}, errors.New("anthropic: API token is empty")
	}
	model := strings.TrimSpace(values[modelName])
	if model == "" {
		model = defaultModel
	}
	return credentials{apiKey: tp.Token, model: model}, nil
}

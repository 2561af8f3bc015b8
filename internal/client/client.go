package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cbot/internal/logging"
	"cbot/internal/types"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:5000"
	DefaultTimeout     = 10 * time.Second
	DefaultChatTimeout = 90 * time.Second
)

const requestIDHeader = "X-Request-ID"

type Client struct {
	baseURL     string
	http        *http.Client
	chatTimeout time.Duration
	logger      logging.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithChatTimeout sets the timeout for chat turns, which run the whole
// counseling pipeline on the backend and are much slower than reads.
func WithChatTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.chatTimeout = timeout
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: DefaultTimeout},
		chatTimeout: DefaultChatTimeout,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", errors.New("user id is required")
	}
	var resp CreateConversationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations", req, &resp); err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp.ConversationID)
	if id == "" {
		return "", errors.New("backend returned no conversation id")
	}
	return id, nil
}

func (c *Client) Chat(ctx context.Context, conversationID, message string) (*ChatResponse, error) {
	path := conversationPath(conversationID) + "/chat"
	var resp ChatResponse
	if err := c.doJSONWithTimeout(ctx, http.MethodPost, path, ChatRequest{Message: message}, &resp, c.chatTimeout); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (*types.ConversationRecord, error) {
	var resp types.ConversationRecord
	if err := c.doJSON(ctx, http.MethodGet, conversationPath(conversationID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Identifier() == "" {
		resp.ConversationID = strings.TrimSpace(conversationID)
	}
	return &resp, nil
}

func (c *Client) ListConversations(ctx context.Context, userID string, limit int) ([]types.ConversationRecord, error) {
	query := url.Values{}
	if strings.TrimSpace(userID) != "" {
		query.Set("user_id", strings.TrimSpace(userID))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/conversations"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp ConversationsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *Client) GetMessagePrompt(ctx context.Context, conversationID string, index int) (*types.PromptRecord, error) {
	if index < 0 {
		return nil, fmt.Errorf("invalid message index %d", index)
	}
	path := fmt.Sprintf("%s/messages/%d/prompt", conversationPath(conversationID), index)
	var resp types.PromptRecord
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetSession(ctx context.Context, conversationID string) (*types.SessionRecord, error) {
	path := "/api/sessions/" + url.PathEscape(strings.TrimSpace(conversationID))
	var resp types.SessionRecord
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListPersonas(ctx context.Context) ([]types.Persona, error) {
	var resp types.PersonasRecord
	if err := c.doJSON(ctx, http.MethodGet, "/admin/api/personas", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Personas, nil
}

func (c *Client) GetPersona(ctx context.Context, id string) (*types.Persona, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("persona id is required")
	}
	var resp types.Persona
	path := "/admin/api/personas/" + url.PathEscape(strings.TrimSpace(id))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send performs one request and returns the raw JSON body. Non-2xx answers
// come back as *APIError, requests without any response as *TransportError.
// The typed methods decode what Send returns.
func (c *Client) Send(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	return c.send(ctx, method, path, body, c.http)
}

func conversationPath(conversationID string) string {
	return "/api/conversations/" + url.PathEscape(strings.TrimSpace(conversationID))
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	raw, err := c.Send(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeBody(method, path, raw, out)
}

func (c *Client) doJSONWithTimeout(ctx context.Context, method, path string, body any, out any, timeout time.Duration) error {
	httpClient := c.http
	if timeout > 0 {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: c.http.Transport,
		}
	}
	raw, err := c.send(ctx, method, path, body, httpClient)
	if err != nil {
		return err
	}
	return decodeBody(method, path, raw, out)
}

func decodeBody(method, path string, raw json.RawMessage, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, httpClient *http.Client) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := logging.NewRequestID()
	req.Header.Set(requestIDHeader, requestID)

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request_failed",
			logging.F("method", method),
			logging.F("path", path),
			logging.F("request_id", requestID),
			logging.F("error", err),
		)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		logging.F("method", method),
		logging.F("path", path),
		logging.F("status", resp.StatusCode),
		logging.F("request_id", requestID),
		logging.F("duration", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

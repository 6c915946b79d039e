// Package openmic wraps the OpenMic voice-AI REST API used to manage bots
// and phone calls. It carries no business logic; callers own persistence.
package openmic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL   = "https://api.openmic.ai/v1"
	defaultUserAgent = "intake-ai-platform/0.1"
)

// Config controls how the OpenMic client behaves.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client wraps the OpenMic REST endpoints relevant to the intake dashboard.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
	userAgent  string
}

// APIError carries a non-2xx provider response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openmic: api error %d: %s", e.StatusCode, e.Message)
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openmic: API key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// CreateBot registers a new calling agent with the provider.
func (c *Client) CreateBot(ctx context.Context, req BotRequest) (*Bot, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("openmic: bot name required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openmic: marshal bot request: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/bots", nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Bot](data)
}

// UpdateBot patches an existing provider bot.
func (c *Client) UpdateBot(ctx context.Context, botID string, req BotRequest) (*Bot, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, errors.New("openmic: bot id required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openmic: marshal bot request: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPatch, "/bots/"+botID, nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Bot](data)
}

// DeleteBot removes a provider bot.
func (c *Client) DeleteBot(ctx context.Context, botID string) error {
	if strings.TrimSpace(botID) == "" {
		return errors.New("openmic: bot id required")
	}
	_, err := c.invoke(ctx, http.MethodDelete, "/bots/"+botID, nil, nil)
	return err
}

// GetBot fetches a provider bot by id.
func (c *Client) GetBot(ctx context.Context, botID string) (*Bot, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, errors.New("openmic: bot id required")
	}
	data, err := c.invoke(ctx, http.MethodGet, "/bots/"+botID, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Bot](data)
}

// ListBots returns all provider bots for the account.
func (c *Client) ListBots(ctx context.Context) ([]Bot, error) {
	data, err := c.invoke(ctx, http.MethodGet, "/bots", nil, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Bots []Bot `json:"bots"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("openmic: decode bot list: %w", err)
	}
	return wrapper.Bots, nil
}

// InitiateCall starts an outbound phone call.
func (c *Client) InitiateCall(ctx context.Context, req InitiateCallRequest) (*Call, error) {
	if strings.TrimSpace(req.BotID) == "" || strings.TrimSpace(req.PhoneNumber) == "" {
		return nil, errors.New("openmic: bot id and phone number required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openmic: marshal call request: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/create-phone-call", nil, body)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Call](data)
}

// GetCall fetches a call session by id.
func (c *Client) GetCall(ctx context.Context, callID string) (*Call, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, errors.New("openmic: call id required")
	}
	data, err := c.invoke(ctx, http.MethodGet, "/calls/"+callID, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Call](data)
}

// ListCalls returns call sessions, optionally filtered by bot.
func (c *Client) ListCalls(ctx context.Context, botID string) ([]Call, error) {
	var q url.Values
	if strings.TrimSpace(botID) != "" {
		q = url.Values{}
		q.Set("bot_id", botID)
	}
	data, err := c.invoke(ctx, http.MethodGet, "/calls", q, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Calls []Call `json:"calls"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("openmic: decode call list: %w", err)
	}
	return wrapper.Calls, nil
}

// invoke performs one authenticated request, retrying transient failures
// (network errors, 429, 5xx) with exponential backoff.
func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := c.buildURL(path, query)

	var out []byte
	operation := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("openmic: build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("openmic retry", "path", path, "error", err)
			return fmt.Errorf("openmic: http error: %w", err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return backoff.Permanent(fmt.Errorf("openmic: read response: %w", readErr))
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = data
			return nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("openmic retry", "path", path, "status", resp.StatusCode)
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	trimmedPath := "/" + strings.TrimLeft(path, "/")
	full := c.baseURL + trimmedPath
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

func decodeJSON[T any](body []byte) (*T, error) {
	var value T
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("openmic: decode response: %w", err)
	}
	return &value, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jeranaias/qubi-tui/internal/logging"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Timeout for short management requests (default: 30s). Pulls, loads
	// and chat completions are bounded by their context only.
	Timeout time.Duration

	// StartupWait is how long to wait for a spawned `ollama serve`
	// (default: 15s).
	StartupWait time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:     "http://127.0.0.1:11434",
		Timeout:     30 * time.Second,
		StartupWait: 15 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
//
// The Client is safe for concurrent use.
//
//	client := ollama.NewClient()
//	if err := client.EnsureRunning(ctx); err != nil {
//	    log.Fatal("Ollama not available:", err)
//	}
//	resp, err := client.ChatWithOptions(ctx, "gemma2:2b", messages, nil)
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	// longClient has no timeout; used for pull, load and chat.
	longClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StartupWait == 0 {
		config.StartupWait = 15 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		longClient: &http.Client{},
		logger:     logging.OrNop(config.Logger),
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// do sends a JSON request and maps transport failures to client errors.
// The caller must close the response body.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	return resp, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// statusError turns a non-2xx response into a client error, preferring the
// server's {"error": "..."} text.
func statusError(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if msg := gjson.GetBytes(data, "error").String(); msg != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}
	return &ClientError{Type: ErrTypeInvalidResponse, Message: op + " failed: " + resp.Status}
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}
	return nil
}

// EnsureRunning checks if Ollama is running, and starts it if not.
// The start logic is platform-specific (see start_unix.go and start_windows.go).
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	c.logger.Info("ollama not reachable, starting it", zap.String("url", c.config.BaseURL))
	return c.startOllamaProcess(ctx)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all locally available models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "list models")
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return result.Models, nil
}

// GetModel retrieves information about a locally stored model.
// Returns ErrModelNotFound when the weights are not present.
func (c *Client) GetModel(ctx context.Context, name string) (*ShowModelResponse, error) {
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, "/api/show", ModelRequest{Model: name})
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "show model")
	}

	var result ShowModelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// ModelExists reports whether a model is stored locally.
func (c *Client) ModelExists(ctx context.Context, model string) (bool, error) {
	_, err := c.GetModel(ctx, model)
	switch {
	case err == nil:
		return true, nil
	case IsModelNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes a model's weights from local storage.
func (c *Client) Delete(ctx context.Context, model string) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodDelete, "/api/delete", ModelRequest{Model: model})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "delete model")
	}
	return nil
}

// Load brings a model into memory and keeps it there for keepAlive.
// An empty keepAlive uses the server default.
func (c *Client) Load(ctx context.Context, model, keepAlive string) error {
	req := GenerateRequest{Model: model, Stream: false}
	if keepAlive != "" {
		req.KeepAlive = keepAlive
	}
	return c.generate(ctx, req, "load model")
}

// Unload evicts a model from memory immediately.
func (c *Client) Unload(ctx context.Context, model string) error {
	return c.generate(ctx, GenerateRequest{Model: model, Stream: false, KeepAlive: 0}, "unload model")
}

func (c *Client) generate(ctx context.Context, body GenerateRequest, op string) error {
	resp, err := c.do(ctx, c.longClient, http.MethodPost, "/api/generate", body)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, op)
	}
	return nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ChatWithOptions sends a non-streaming chat request with custom options.
func (c *Client) ChatWithOptions(ctx context.Context, model string, messages []Message, opts *Options) (*ChatResponse, error) {
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	}

	resp, err := c.do(ctx, c.longClient, http.MethodPost, "/api/chat", reqBody)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "chat request")
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// =============================================================================
// UTILITY METHODS
// =============================================================================

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeModelNotFound
	}
	return false
}

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}

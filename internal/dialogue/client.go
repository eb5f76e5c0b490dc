// Package dialogue talks to the remote dialogue service and falls back to the local
// engine whenever the service cannot answer.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// DefaultTimeout bounds one request to the dialogue service.
const DefaultTimeout = 8 * time.Second

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 1024

var (
	// ErrMissingCredential is returned when the service answers 401.
	ErrMissingCredential = errors.New("dialogue service missing credential")
	// ErrMalformedResult is returned when the response cannot be decoded into a known result.
	ErrMalformedResult = errors.New("malformed dialogue result")
)

// StatusError is returned for any non-2xx response other than 401.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dialogue service returned status %d: %s", e.Code, e.Body)
}

// Opts holds configuration for the dialogue Client.
type Opts struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	APIKey     string
}

// Option configures the dialogue Client.
type Option func(*Opts)

// WithBaseURL sets the service root; "/chat" is appended.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient injects the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithAPIKey forwards an OpenAI key to the service in the X-OpenAI-Key header.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// Client calls POST /chat on the dialogue service.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	apiKey   string
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat",
		timeout:  cfg.Timeout,
		http:     hc,
		apiKey:   cfg.APIKey,
	}
}

// Chat sends one turn to the service. The request is abandoned when the deadline passes.
func (c *Client) Chat(ctx context.Context, req models.DialogueRequest) (models.DialogueResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return models.DialogueResult{}, fmt.Errorf("failed to marshal dialogue request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.DialogueResult{}, fmt.Errorf("failed to build dialogue request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-OpenAI-Key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return models.DialogueResult{}, fmt.Errorf("dialogue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return models.DialogueResult{}, ErrMissingCredential
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.DialogueResult{}, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	var result models.DialogueResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if ctx.Err() != nil {
			return models.DialogueResult{}, fmt.Errorf("dialogue response interrupted: %w", ctx.Err())
		}
		return models.DialogueResult{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	slog.Debug("Client.Chat: dialogue result received", "type", result.Type, "bytes", len(result.Data))
	return result, nil
}

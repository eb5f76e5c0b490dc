package main

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
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// ErrServer is wrapped by every error the server reports in its response envelope.
var ErrServer = errors.New("server error")

// envelope mirrors models.APIResponse with the result left undecoded.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// sentMessage is the result of POST /users/{id}/messages.
type sentMessage struct {
	Reply    models.Reply `json:"reply"`
	Rendered string       `json:"rendered"`
}

// apiClient calls the per-user REST surface of a SehaCoach server.
type apiClient struct {
	base    string
	user    string
	timeout time.Duration
	http    *http.Client
}

func newAPIClient(base, user string, timeout time.Duration) *apiClient {
	return &apiClient{
		base:    strings.TrimRight(base, "/"),
		user:    user,
		timeout: timeout,
		http:    &http.Client{},
	}
}

func (c *apiClient) userPath(suffix string) string {
	return "/users/" + url.PathEscape(c.user) + suffix
}

// Send posts one message and returns the coach's reply.
func (c *apiClient) Send(ctx context.Context, text string) (sentMessage, error) {
	var out sentMessage
	err := c.do(ctx, http.MethodPost, c.userPath("/messages"), map[string]string{"text": text}, &out)
	return out, err
}

// History returns up to limit messages, oldest first.
func (c *apiClient) History(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	path := c.userPath("/messages")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &msgs)
	return msgs, err
}

// Profile returns the stored profile.
func (c *apiClient) Profile(ctx context.Context) (models.UserProfile, error) {
	var p models.UserProfile
	err := c.do(ctx, http.MethodGet, c.userPath("/profile"), nil, &p)
	return p, err
}

// Reset deletes the user and returns the fresh intro.
func (c *apiClient) Reset(ctx context.Context) (models.Reply, error) {
	var r models.Reply
	err := c.do(ctx, http.MethodDelete, c.userPath(""), nil, &r)
	return r, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("apiClient.do: request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: unreadable response (HTTP %d): %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Status == string(models.APIStatusError) {
		return fmt.Errorf("%w: HTTP %d: %s", ErrServer, resp.StatusCode, env.Message)
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

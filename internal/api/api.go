// Package api provides the HTTP server for SehaCoach.
//
// It exposes the dialogue service used by smart mode (POST /chat), a per-user REST surface
// over the coach (messages, profile, meals, tracker, panels), an optional Twilio webhook,
// and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/SehaCoach/internal/coach"
	"github.com/BTreeMap/SehaCoach/internal/dialogue"
	"github.com/BTreeMap/SehaCoach/internal/genai"
)

// Constants for server configuration
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultHistoryLimit is used by GET /users/{id}/messages when no limit is given.
	DefaultHistoryLimit = 50
	// MaxJSONBodyBytes caps JSON request bodies.
	MaxJSONBodyBytes = 1 << 20
	// APIKeyHeader carries a caller-supplied OpenAI key for POST /chat.
	APIKeyHeader = "X-OpenAI-Key"
)

// Opts holds configuration for the Server.
type Opts struct {
	Addr           string
	MetricsHandler http.Handler
	GenAIOptions   []genai.Option
	TwilioWebhook  http.HandlerFunc
}

// Option configures the Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithMetricsHandler overrides the handler served at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *Opts) { o.MetricsHandler = h }
}

// WithGenAIOptions sets the options used to build a per-request GenAI client when a caller
// supplies its own key in the X-OpenAI-Key header.
func WithGenAIOptions(opts ...genai.Option) Option {
	return func(o *Opts) { o.GenAIOptions = opts }
}

// WithTwilioWebhook mounts the Twilio inbound webhook at POST /webhooks/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// Server serves the SehaCoach HTTP API.
type Server struct {
	coach    *coach.Coach
	dialogue dialogue.Remote
	addr     string
	metrics  http.Handler
	genOpts  []genai.Option
	twilio   http.HandlerFunc
}

// NewServer creates a Server. dlg answers POST /chat when no per-request key is given;
// it may be nil, in which case /chat requires the X-OpenAI-Key header.
func NewServer(c *coach.Coach, dlg dialogue.Remote, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	slog.Debug("NewServer: configured", "addr", cfg.Addr, "dialogue_set", dlg != nil, "twilio_webhook", cfg.TwilioWebhook != nil)
	return &Server{
		coach:    c,
		dialogue: dlg,
		addr:     cfg.Addr,
		metrics:  cfg.MetricsHandler,
		genOpts:  cfg.GenAIOptions,
		twilio:   cfg.TwilioWebhook,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.chatHandler)
	mux.HandleFunc("POST /users/{id}/messages", s.sendMessageHandler)
	mux.HandleFunc("GET /users/{id}/messages", s.historyHandler)
	mux.HandleFunc("GET /users/{id}/profile", s.profileHandler)
	mux.HandleFunc("PATCH /users/{id}/profile", s.updateProfileHandler)
	mux.HandleFunc("DELETE /users/{id}", s.resetHandler)
	mux.HandleFunc("POST /users/{id}/tags", s.toggleTagHandler)
	mux.HandleFunc("POST /users/{id}/meals", s.logMealHandler)
	mux.HandleFunc("GET /users/{id}/tracker", s.trackerHandler)
	mux.HandleFunc("POST /users/{id}/tracker", s.updateTrackerHandler)
	mux.HandleFunc("POST /users/{id}/rewards/unlock", s.unlockRewardsHandler)
	mux.HandleFunc("GET /users/{id}/panels/{action}", s.panelHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics)
	if s.twilio != nil {
		mux.HandleFunc("POST /webhooks/twilio", s.twilio)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: server failed", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: graceful shutdown failed", "error", err)
		return err
	}
	slog.Info("Server.Run: stopped")
	return nil
}

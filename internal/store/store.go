// Package store provides storage backends for SehaCoach.
//
// Every backend persists the same four things per user: the profile, the chat history,
// today's tracker log and the inbound message IDs already handled.
package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// ErrNotFound is returned when a user has no stored profile or tracker log.
var ErrNotFound = errors.New("not found")

// Store is the profile store contract. Saves are last-write-wins.
type Store interface {
	LoadProfile(ctx context.Context, userID string) (models.UserProfile, error)
	SaveProfile(ctx context.Context, userID string, p models.UserProfile) error
	// DeleteUser removes the profile, history and tracker of a user.
	DeleteUser(ctx context.Context, userID string) error

	AppendMessage(ctx context.Context, userID string, msg models.ChatMessage) error
	// RecentMessages returns up to limit messages, oldest first. A limit <= 0 returns all.
	RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)
	ClearMessages(ctx context.Context, userID string) error

	LoadTracker(ctx context.Context, userID string) (models.TrackerLog, error)
	SaveTracker(ctx context.Context, userID string, t models.TrackerLog) error

	DedupRepo

	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN       string
	RedisURL  string
	KeyPrefix string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisURL sets the redis:// URL for the Redis backend.
func WithRedisURL(url string) Option {
	return func(o *Opts) { o.RedisURL = url }
}

// WithKeyPrefix namespaces Redis keys. Defaults to DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *Opts) { o.KeyPrefix = prefix }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// New opens the backend selected by the options: Redis when a Redis URL is set, then
// PostgreSQL or SQLite by DSN type, else an in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.RedisURL != "":
		return NewRedisStore(opts...)
	case cfg.DSN == "":
		slog.Debug("store.New: no DSN provided, using in-memory store")
		return NewInMemoryStore(), nil
	case DetectDSNType(cfg.DSN) == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// InMemoryStore keeps everything in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	messages map[string][]models.ChatMessage
	trackers map[string]models.TrackerLog
	inbound  map[string]DedupRecord
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		messages: make(map[string][]models.ChatMessage),
		trackers: make(map[string]models.TrackerLog),
		inbound:  make(map[string]DedupRecord),
	}
}

func (s *InMemoryStore) LoadProfile(_ context.Context, userID string) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.UserProfile{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) SaveProfile(_ context.Context, userID string, p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = p.Clone()
	return nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	delete(s.messages, userID)
	delete(s.trackers, userID)
	return nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, userID string, msg models.ChatMessage) error {
	msg.Options = slices.Clone(msg.Options)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[userID] = append(s.messages[userID], msg)
	return nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.ChatMessage, len(msgs))
	for i, m := range msgs {
		m.Options = slices.Clone(m.Options)
		out[i] = m
	}
	return out, nil
}

func (s *InMemoryStore) ClearMessages(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, userID)
	return nil
}

func (s *InMemoryStore) LoadTracker(_ context.Context, userID string) (models.TrackerLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackers[userID]
	if !ok {
		return models.TrackerLog{}, ErrNotFound
	}
	return t, nil
}

func (s *InMemoryStore) SaveTracker(_ context.Context, userID string, t models.TrackerLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[userID] = t
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

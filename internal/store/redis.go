// Package store provides storage backends for SehaCoach.
//
// This file implements a Redis-backed store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

const (
	// DefaultKeyPrefix namespaces every key the Redis store writes.
	DefaultKeyPrefix = "sehacoach"
	// DedupTTL bounds how long inbound message IDs are remembered.
	DedupTTL = 7 * 24 * time.Hour
)

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// RedisStore keeps profiles and trackers as JSON strings and the chat history as a list.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server named by WithRedisURL.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RedisStore.NewRedisStore: creating Redis store", "URL_set", cfg.RedisURL != "")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL not set")
	}
	ropts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) key(kind, id string) string {
	return s.prefix + ":" + kind + ":" + id
}

func (s *RedisStore) LoadProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	data, err := s.rdb.Get(ctx, s.key("profile", userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.UserProfile{}, ErrNotFound
	}
	if err != nil {
		slog.Error("RedisStore LoadProfile failed", "error", err, "userID", userID)
		return models.UserProfile{}, fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}
	return decodeProfile(data)
}

func (s *RedisStore) SaveProfile(ctx context.Context, userID string, p models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key("profile", userID), data, 0).Err(); err != nil {
		slog.Error("RedisStore SaveProfile failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save profile for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) error {
	err := s.rdb.Del(ctx,
		s.key("profile", userID),
		s.key("messages", userID),
		s.key("tracker", userID),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, userID string, msg models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.key("messages", userID), data).Err(); err != nil {
		slog.Error("RedisStore AppendMessage failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to append message for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.rdb.LRange(ctx, s.key("messages", userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message failed: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) ClearMessages(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key("messages", userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear messages for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) LoadTracker(ctx context.Context, userID string) (models.TrackerLog, error) {
	var t models.TrackerLog
	data, err := s.rdb.Get(ctx, s.key("tracker", userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("failed to load tracker for %s: %w", userID, err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to decode tracker: %w", err)
	}
	return t, nil
}

func (s *RedisStore) SaveTracker(ctx context.Context, userID string, t models.TrackerLog) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tracker: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key("tracker", userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save tracker for %s: %w", userID, err)
	}
	return nil
}

// RecordInbound claims the message ID with HSETNX so concurrent deliveries race safely.
func (s *RedisStore) RecordInbound(ctx context.Context, messageID, userID string) (bool, error) {
	k := s.key("inbound", messageID)
	created, err := s.rdb.HSetNX(ctx, k, "received_at", time.Now().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	if !created {
		return false, nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, "user_id", userID)
	pipe.Expire(ctx, k, DedupTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("record inbound metadata failed: %w", err)
	}
	return true, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, messageID string) error {
	k := s.key("inbound", messageID)
	n, err := s.rdb.Exists(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := s.rdb.HSet(ctx, k, "processed_at", time.Now().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	slog.Debug("Closing Redis client")
	return s.rdb.Close()
}

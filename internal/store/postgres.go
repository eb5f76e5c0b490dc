// Package store provides storage backends for SehaCoach.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/SehaCoach/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore LoadProfile failed", "error", err, "userID", userID)
		return models.UserProfile{}, fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}
	return decodeProfile(data)
}

func (s *PostgresStore) SaveProfile(ctx context.Context, userID string, p models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, string(data), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveProfile failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save profile for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore SaveProfile succeeded", "userID", userID)
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM profiles WHERE user_id = $1`,
		`DELETE FROM messages WHERE user_id = $1`,
		`DELETE FROM trackers WHERE user_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("failed to delete user %s: %w", userID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) AppendMessage(ctx context.Context, userID string, msg models.ChatMessage) error {
	options, err := encodeOptions(msg.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, sender, text, options, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, userID, string(msg.Sender), msg.Text, options, msg.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AppendMessage failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to append message for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit <= 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, sender, text, options, created_at FROM messages WHERE user_id = $1 ORDER BY seq ASC`, userID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, sender, text, options, created_at FROM (
				SELECT seq, id, sender, text, options, created_at FROM messages
				WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
			) recent ORDER BY seq ASC`, userID, limit)
	}
	if err != nil {
		slog.Error("PostgresStore RecentMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return collectMessages(rows)
}

func (s *PostgresStore) ClearMessages(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear messages for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) LoadTracker(ctx context.Context, userID string) (models.TrackerLog, error) {
	var t models.TrackerLog
	err := s.db.QueryRowContext(ctx, `SELECT date, water, steps FROM trackers WHERE user_id = $1`, userID).
		Scan(&t.Date, &t.Water, &t.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("failed to load tracker for %s: %w", userID, err)
	}
	return t, nil
}

func (s *PostgresStore) SaveTracker(ctx context.Context, userID string, t models.TrackerLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trackers (user_id, date, water, steps) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET date = EXCLUDED.date, water = EXCLUDED.water, steps = EXCLUDED.steps`,
		userID, t.Date, t.Water, t.Steps)
	if err != nil {
		return fmt.Errorf("failed to save tracker for %s: %w", userID, err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// Package store provides storage backends for SehaCoach.
//
// This file implements an SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_busy_timeout=5000")
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore LoadProfile failed", "error", err, "userID", userID)
		return models.UserProfile{}, fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}
	return decodeProfile(data)
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, userID string, p models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveProfile failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save profile for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SaveProfile succeeded", "userID", userID)
	return nil
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM profiles WHERE user_id = ?`,
		`DELETE FROM messages WHERE user_id = ?`,
		`DELETE FROM trackers WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("failed to delete user %s: %w", userID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, userID string, msg models.ChatMessage) error {
	options, err := encodeOptions(msg.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, sender, text, options, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, userID, string(msg.Sender), msg.Text, options, msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AppendMessage failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to append message for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, text, options, created_at FROM (
			SELECT seq, id, sender, text, options, created_at FROM messages
			WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, userID, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return collectMessages(rows)
}

func (s *SQLiteStore) ClearMessages(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear messages for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadTracker(ctx context.Context, userID string) (models.TrackerLog, error) {
	var t models.TrackerLog
	err := s.db.QueryRowContext(ctx, `SELECT date, water, steps FROM trackers WHERE user_id = ?`, userID).
		Scan(&t.Date, &t.Water, &t.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("failed to load tracker for %s: %w", userID, err)
	}
	return t, nil
}

func (s *SQLiteStore) SaveTracker(ctx context.Context, userID string, t models.TrackerLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trackers (user_id, date, water, steps) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET date = excluded.date, water = excluded.water, steps = excluded.steps`,
		userID, t.Date, t.Water, t.Steps)
	if err != nil {
		return fmt.Errorf("failed to save tracker for %s: %w", userID, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

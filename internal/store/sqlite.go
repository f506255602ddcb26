package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// sqlite driver
	_ "modernc.org/sqlite"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// SQLiteStore persists credentials in a SQLite file. Timestamps are unix milliseconds,
// zero meaning unset.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path, configures it and creates the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases and WAL writers consistent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(tableSchema, "INTEGER NOT NULL DEFAULT 0", "INTEGER")); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (models.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, kind, access_token, refresh_token, expires_at, scope, token_type, updated_at
		FROM cf_tokens WHERE user_id = ?`, userID)

	var (
		rec                  models.CredentialRecord
		kind                 string
		expiresAt, updatedAt int64
	)
	err := row.Scan(&rec.UserID, &kind, &rec.AccessToken, &rec.RefreshToken, &expiresAt, &rec.Scope, &rec.TokenType, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CredentialRecord{}, ErrNotFound
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("get credential: %w", err)
	}

	if rec.Kind, err = models.ParseCredentialKind(kind); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("get credential: %w", err)
	}
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec models.CredentialRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cf_tokens (user_id, kind, access_token, refresh_token, expires_at, scope, token_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			kind = excluded.kind,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			token_type = excluded.token_type,
			updated_at = excluded.updated_at`,
		rec.UserID, string(rec.Kind), rec.AccessToken, rec.RefreshToken,
		toMillis(rec.ExpiresAt), rec.Scope, rec.TokenType, toMillis(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

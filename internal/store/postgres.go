package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(tableSchema, "TIMESTAMPTZ", "TIMESTAMPTZ")); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (models.CredentialRecord, error) {
	var (
		rec       models.CredentialRecord
		kind      string
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, kind, access_token, refresh_token, expires_at, scope, token_type, updated_at
		FROM cf_tokens WHERE user_id = $1`, userID).
		Scan(&rec.UserID, &kind, &rec.AccessToken, &rec.RefreshToken, &expiresAt, &rec.Scope, &rec.TokenType, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CredentialRecord{}, ErrNotFound
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("get credential: %w", err)
	}

	if rec.Kind, err = models.ParseCredentialKind(kind); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("get credential: %w", err)
	}
	if expiresAt != nil {
		rec.ExpiresAt = expiresAt.UTC()
	}
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec models.CredentialRecord) error {
	var expiresAt *time.Time
	if !rec.ExpiresAt.IsZero() {
		expiresAt = &rec.ExpiresAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cf_tokens (user_id, kind, access_token, refresh_token, expires_at, scope, token_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			token_type = EXCLUDED.token_type,
			updated_at = EXCLUDED.updated_at`,
		rec.UserID, string(rec.Kind), rec.AccessToken, rec.RefreshToken,
		expiresAt, rec.Scope, rec.TokenType, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

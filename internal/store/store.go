// Package store persists per-user Cloudflare credentials.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lablabs/cloudflare-analytics-export/internal/config"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// ErrNotFound is returned when no credential exists for a user.
var ErrNotFound = errors.New("credential not found")

// Store is a durable keyed record of credentials. Upsert overwrites unconditionally;
// the last writer wins.
type Store interface {
	Get(ctx context.Context, userID string) (models.CredentialRecord, error)
	Upsert(ctx context.Context, rec models.CredentialRecord) error
	Close() error
}

// Compile-time interface assertions.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open returns the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.StoreDSN)
	case "postgres":
		return NewPostgresStore(ctx, cfg.StoreDSN)
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

const tableSchema = `
CREATE TABLE IF NOT EXISTS cf_tokens (
	user_id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at %s,
	scope TEXT NOT NULL DEFAULT '',
	token_type TEXT NOT NULL DEFAULT '',
	updated_at %s NOT NULL
)`

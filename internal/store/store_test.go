package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lablabs/cloudflare-analytics-export/internal/config"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

func oauthRecord() models.CredentialRecord {
	return models.CredentialRecord{
		UserID:       "user-1",
		Kind:         models.KindOAuthPair,
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Scope:        "zone:read",
		TokenType:    "bearer",
		UpdatedAt:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := oauthRecord()
	require.NoError(t, s.Upsert(ctx, rec))

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.AccessToken, got.AccessToken)
	assert.Equal(t, rec.RefreshToken, got.RefreshToken)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, rec.Scope, got.Scope)
	assert.Equal(t, rec.TokenType, got.TokenType)

	// overwrite with a static token without expiry
	static := models.CredentialRecord{
		UserID:      "user-1",
		Kind:        models.KindStaticToken,
		AccessToken: "static",
		UpdatedAt:   time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Upsert(ctx, static))

	got, err = s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.KindStaticToken, got.Kind)
	assert.Equal(t, "static", got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.True(t, got.ExpiresAt.IsZero())
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "tokens.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_UnknownKind(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, `INSERT INTO cf_tokens (user_id, kind, access_token, updated_at) VALUES ('u', 'magic', 'x', 0)`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "u")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.StoreDriver = "sqlite"
	cfg.StoreDSN = filepath.Join(t.TempDir(), "open.db")
	s, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	cfg.StoreDriver = "mongo"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}

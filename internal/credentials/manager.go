package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	logging "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/lablabs/cloudflare-analytics-export/internal/metrics"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
	"github.com/lablabs/cloudflare-analytics-export/internal/oauth"
	"github.com/lablabs/cloudflare-analytics-export/internal/store"
)

// Refresher performs the OAuth refresh grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error)
}

// Manager resolves a usable bearer token per user and refreshes expired OAuth tokens.
//
// Concurrent refreshes for one user inside this process share a single grant. Separate
// processes may still refresh the same user at once; the last upsert wins.
type Manager struct {
	store     store.Store
	refresher Refresher
	group     singleflight.Group
	now       func() time.Time
}

func NewManager(s store.Store, r Refresher) *Manager {
	return &Manager{store: s, refresher: r, now: time.Now}
}

// Resolve returns the bearer token to use for userID, refreshing it at most once.
func (m *Manager) Resolve(ctx context.Context, userID string) (string, error) {
	rec, err := m.store.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	if !rec.Expired(m.now()) {
		return rec.AccessToken, nil
	}
	if rec.RefreshToken == "" {
		return "", ErrCredentialExpired
	}

	// The flight outlives any single caller that joined it.
	flightCtx := context.WithoutCancel(ctx)
	token, err, shared := m.group.Do(userID, func() (interface{}, error) {
		return m.refreshLatest(flightCtx, userID)
	})
	if err != nil {
		return "", err
	}
	if shared {
		logging.WithField("user_id", userID).Debug("Joined in-flight token refresh")
	}
	return token.(string), nil
}

// refreshLatest re-reads the record so a caller holding a stale copy never replays a
// refresh token that an earlier flight already rotated.
func (m *Manager) refreshLatest(ctx context.Context, userID string) (string, error) {
	rec, err := m.store.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if !rec.Expired(m.now()) {
		return rec.AccessToken, nil
	}
	if rec.RefreshToken == "" {
		return "", ErrCredentialExpired
	}
	return m.refresh(ctx, rec)
}

func (m *Manager) refresh(ctx context.Context, rec models.CredentialRecord) (string, error) {
	tok, err := m.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		metrics.IncTokenRefresh(metrics.OutcomeError)
		logging.WithFields(logging.Fields{
			"user_id": rec.UserID,
			"error":   err.Error(),
		}).Warn("Token refresh failed")
		return "", &RefreshFailedError{Err: err}
	}
	metrics.IncTokenRefresh(metrics.OutcomeSuccess)

	now := m.now()
	updated := rec
	updated.AccessToken = tok.AccessToken
	updated.ExpiresAt = expiry(now, tok.ExpiresIn)
	updated.UpdatedAt = now
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	if tok.Scope != "" {
		updated.Scope = tok.Scope
	}
	if tok.TokenType != "" {
		updated.TokenType = tok.TokenType
	}

	if err := m.store.Upsert(ctx, updated); err != nil {
		// The new access token is valid for this request even if it could not be kept.
		logging.WithFields(logging.Fields{
			"user_id": rec.UserID,
			"error":   err.Error(),
		}).Error("Failed to persist refreshed credential")
	}

	logging.WithFields(logging.Fields{
		"user_id":    rec.UserID,
		"expires_at": updated.ExpiresAt,
	}).Info("Refreshed Cloudflare token")
	return updated.AccessToken, nil
}

// SaveToken stores a long-lived API token for userID, replacing any previous credential.
func (m *Manager) SaveToken(ctx context.Context, userID, token string) error {
	err := m.store.Upsert(ctx, models.CredentialRecord{
		UserID:      userID,
		Kind:        models.KindStaticToken,
		AccessToken: token,
		UpdatedAt:   m.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	metrics.IncCredentialSaved(string(models.KindStaticToken))
	return nil
}

// SaveOAuth stores the token pair obtained from the authorization code grant.
func (m *Manager) SaveOAuth(ctx context.Context, userID string, tok *oauth.TokenResponse) error {
	now := m.now()
	err := m.store.Upsert(ctx, models.CredentialRecord{
		UserID:       userID,
		Kind:         models.KindOAuthPair,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiry(now, tok.ExpiresIn),
		Scope:        tok.Scope,
		TokenType:    tok.TokenType,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to save OAuth credential: %w", err)
	}
	metrics.IncCredentialSaved(string(models.KindOAuthPair))
	return nil
}

// expiry returns zero, meaning no expiry, when the grant carries no lifetime.
func expiry(now time.Time, expiresIn int) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(expiresIn) * time.Second)
}

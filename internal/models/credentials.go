package models

import (
	"fmt"
	"time"
)

// CredentialKind tags how a stored credential is used.
type CredentialKind string

const (
	// KindStaticToken is a long-lived API token saved by the user.
	KindStaticToken CredentialKind = "static_token"
	// KindOAuthPair is an OAuth access/refresh token pair.
	KindOAuthPair CredentialKind = "oauth_pair"
)

// ParseCredentialKind resolves a persisted kind value.
func ParseCredentialKind(s string) (CredentialKind, error) {
	switch CredentialKind(s) {
	case KindStaticToken, KindOAuthPair:
		return CredentialKind(s), nil
	}
	return "", fmt.Errorf("unknown credential kind %q", s)
}

// CredentialRecord is the per-user Cloudflare credential.
type CredentialRecord struct {
	UserID       string
	Kind         CredentialKind
	AccessToken  string
	RefreshToken string
	// ExpiresAt is zero when the token does not expire.
	ExpiresAt time.Time
	Scope     string
	TokenType string
	UpdatedAt time.Time
}

// Expired reports whether an OAuth access token is no longer usable at now.
func (r CredentialRecord) Expired(now time.Time) bool {
	if r.Kind != KindOAuthPair || r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt)
}

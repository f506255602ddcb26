package credentials

import (
	"errors"

	"github.com/lablabs/cloudflare-analytics-export/internal/oauth"
)

// Caller-fixable credential problems. Their messages are shown to the user as is.
var (
	ErrCredentialNotFound = errors.New("No Cloudflare token found. Connect your account.")
	ErrCredentialExpired  = errors.New("Cloudflare token expired. Reconnect your account.")
)

const msgRefreshFailed = "Failed to refresh Cloudflare token."

// RefreshFailedError wraps a failed refresh grant. The stored credential is left untouched.
type RefreshFailedError struct {
	Err error
}

func (e *RefreshFailedError) Error() string {
	var tokenErr *oauth.TokenError
	if errors.As(e.Err, &tokenErr) && tokenErr.Description != "" {
		return tokenErr.Description
	}
	return msgRefreshFailed
}

func (e *RefreshFailedError) Unwrap() error {
	return e.Err
}

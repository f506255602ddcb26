package handlers

import (
	"context"

	"github.com/lablabs/cloudflare-analytics-export/internal/analytics"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
	"github.com/lablabs/cloudflare-analytics-export/internal/oauth"
)

// CredentialManager resolves and stores per-user credentials.
type CredentialManager interface {
	Resolve(ctx context.Context, userID string) (string, error)
	SaveToken(ctx context.Context, userID, token string) error
	SaveOAuth(ctx context.Context, userID string, tok *oauth.TokenResponse) error
}

// Exporter runs an analytics export.
type Exporter interface {
	Export(ctx context.Context, token string, req analytics.ExportRequest) (models.AggregationResult, error)
}

// CloudflareAPI validates tokens and lists zones.
type CloudflareAPI interface {
	ValidateToken(ctx context.Context, token, zoneID string) (models.ValidationResult, error)
	ListZones(ctx context.Context, token string) ([]models.ZoneSummary, error)
}

// OAuthProvider drives the consent flow.
type OAuthProvider interface {
	Configured() bool
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.TokenResponse, error)
}

// StateCodec seals the OAuth state.
type StateCodec interface {
	Encode(s oauth.State) (string, error)
	Decode(token string) (oauth.State, error)
}

// Handlers serves the /api endpoints.
type Handlers struct {
	credentials     CredentialManager
	exporter        Exporter
	api             CloudflareAPI
	oauth           OAuthProvider
	state           StateCodec
	defaultReturnTo string
}

// Deps are the collaborators of Handlers.
type Deps struct {
	Credentials     CredentialManager
	Exporter        Exporter
	API             CloudflareAPI
	OAuth           OAuthProvider
	State           StateCodec
	DefaultReturnTo string
}

func New(d Deps) *Handlers {
	returnTo := d.DefaultReturnTo
	if returnTo == "" {
		returnTo = "/dashboard"
	}
	return &Handlers{
		credentials:     d.Credentials,
		exporter:        d.Exporter,
		api:             d.API,
		oauth:           d.OAuth,
		state:           d.State,
		defaultReturnTo: returnTo,
	}
}

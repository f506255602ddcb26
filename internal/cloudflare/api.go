package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/samber/lo"
	logging "github.com/sirupsen/logrus"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// User-facing validation messages. Upstream codes are translated into this closed set.
const (
	msgInvalidToken     = "Invalid API token. Please check that you copied the full token."
	msgZonePermission   = "Token doesn't have permission for this zone. Ensure your token includes Zone:Read and Zone.Analytics:Read permissions for this zone."
	msgZoneNotFound     = "Zone not found. Please check the Zone ID is correct (32-character hex string from your domain's Overview page)."
	msgZoneInaccessible = "Unable to access this zone."
)

var (
	permissionErrorCodes = []int{7003, 9109, 10000}
	notFoundErrorCodes   = []int{7000, 1001}
)

// codedError is implemented by every cloudflare-go API error type.
type codedError interface {
	error
	ErrorCodes() []int
	ErrorMessages() []string
}

// API wraps the Cloudflare REST endpoints used for validation and zone listing.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI creates an API using baseURL and httpClient for every call.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	return &API{baseURL: baseURL, httpClient: httpClient}
}

func (a *API) newClient(token string) (*cloudflare.API, error) {
	// Transport retries belong to the shared HTTP client.
	opts := []cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}
	if a.baseURL != "" {
		opts = append(opts, cloudflare.BaseURL(a.baseURL))
	}
	if a.httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(a.httpClient))
	}
	api, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudflare API client: %w", err)
	}
	return api, nil
}

// ValidateToken verifies the token and then its access to zoneID. Upstream rejections are
// reported in the result; only unexpected failures return an error.
func (a *API) ValidateToken(ctx context.Context, token, zoneID string) (models.ValidationResult, error) {
	api, err := a.newClient(token)
	if err != nil {
		// cloudflare-go rejects empty or malformed tokens at construction time
		return models.ValidationResult{Valid: false, Error: msgInvalidToken}, nil
	}

	verified, err := api.VerifyAPIToken(ctx)
	if err != nil {
		var coded codedError
		if !errors.As(err, &coded) {
			return models.ValidationResult{}, fmt.Errorf("failed to verify token: %w", err)
		}
	}
	if err != nil || verified.Status != "active" {
		fields := logging.Fields{"status": verified.Status}
		if err != nil {
			fields["error"] = err.Error()
		}
		logging.WithFields(fields).Info("API token verification failed")
		return models.ValidationResult{Valid: false, Error: msgInvalidToken}, nil
	}

	zone, err := api.ZoneDetails(ctx, zoneID)
	if err != nil {
		var coded codedError
		if !errors.As(err, &coded) {
			return models.ValidationResult{}, fmt.Errorf("failed to look up zone: %w", err)
		}
		logging.WithFields(logging.Fields{
			"zone_id": zoneID,
			"codes":   coded.ErrorCodes(),
		}).Info("Zone lookup rejected")
		return models.ValidationResult{Valid: false, Error: zoneErrorMessage(err, coded)}, nil
	}

	return models.ValidationResult{Valid: true, ZoneName: zone.Name, ZoneID: zone.ID}, nil
}

func zoneErrorMessage(err error, coded codedError) string {
	codes := coded.ErrorCodes()
	switch {
	case lo.Some(codes, permissionErrorCodes), errors.As(err, new(*cloudflare.AuthorizationError)):
		return msgZonePermission
	case lo.Some(codes, notFoundErrorCodes), errors.As(err, new(*cloudflare.NotFoundError)):
		return msgZoneNotFound
	}
	if msgs := lo.Compact(coded.ErrorMessages()); len(msgs) > 0 {
		return msgs[0]
	}
	return msgZoneInaccessible
}

// ListZones returns every zone the token can read.
func (a *API) ListZones(ctx context.Context, token string) ([]models.ZoneSummary, error) {
	api, err := a.newClient(token)
	if err != nil {
		return nil, err
	}

	zones, err := api.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch zones: %w", err)
	}

	logging.WithField("zone_count", len(zones)).Info("Successfully fetched zones")

	return lo.Map(zones, func(z cloudflare.Zone, _ int) models.ZoneSummary {
		return models.ZoneSummary{ID: z.ID, Name: z.Name}
	}), nil
}

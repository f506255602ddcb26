package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/lablabs/cloudflare-analytics-export/internal/analytics"
	"github.com/lablabs/cloudflare-analytics-export/internal/client"
	"github.com/lablabs/cloudflare-analytics-export/internal/cloudflare"
	"github.com/lablabs/cloudflare-analytics-export/internal/config"
	"github.com/lablabs/cloudflare-analytics-export/internal/credentials"
	"github.com/lablabs/cloudflare-analytics-export/internal/handlers"
	"github.com/lablabs/cloudflare-analytics-export/internal/oauth"
	"github.com/lablabs/cloudflare-analytics-export/internal/store"
)

const retryInterval = 500 * time.Millisecond

// Services is the dependency graph shared by the HTTP server and the export command.
type Services struct {
	Store       store.Store
	Pool        *workerpool.WorkerPool
	API         *cloudflare.API
	Exporter    *analytics.Exporter
	OAuth       *oauth.Client
	State       *oauth.StateCodec
	Credentials *credentials.Manager
}

// NewServices builds every collaborator from cfg. Close releases the store and the pool.
func NewServices(ctx context.Context, cfg config.Config) (*Services, error) {
	s, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	httpClient := client.NewRetryableClient(cfg.HTTPRetryMax, retryInterval, cfg.HTTPTimeout).HTTPClient()
	gql := client.NewGraphQLClient(cfg.GraphQLEndpoint, httpClient)
	pool := workerpool.New(cfg.ChunkWorkers)

	oauthClient := oauth.NewClient(cfg, httpClient)

	return &Services{
		Store:       s,
		Pool:        pool,
		API:         cloudflare.NewAPI(cfg.APIBaseURL, httpClient),
		Exporter:    analytics.NewExporter(cloudflare.NewAnalyticsClient(gql, cfg.QueryLimit), pool, cfg.MaxChunkSpan),
		OAuth:       oauthClient,
		State:       oauth.NewStateCodec(cfg.SealingSecret()),
		Credentials: credentials.NewManager(s, oauthClient),
	}, nil
}

// Handlers returns the HTTP handlers bound to the services.
func (s *Services) Handlers(cfg config.Config) *handlers.Handlers {
	return handlers.New(handlers.Deps{
		Credentials:     s.Credentials,
		Exporter:        s.Exporter,
		API:             s.API,
		OAuth:           s.OAuth,
		State:           s.State,
		DefaultReturnTo: cfg.DefaultReturnTo,
	})
}

// Close stops the worker pool and closes the store.
func (s *Services) Close() error {
	s.Pool.StopWait()
	return s.Store.Close()
}

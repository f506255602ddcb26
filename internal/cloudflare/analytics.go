package cloudflare

import (
	"context"
	"fmt"
	"time"

	logging "github.com/sirupsen/logrus"

	"github.com/lablabs/cloudflare-analytics-export/internal/client"
	"github.com/lablabs/cloudflare-analytics-export/internal/limiter"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// AnalyticsClient executes bounded analytics queries against the Cloudflare GraphQL API.
type AnalyticsClient struct {
	graphql *client.GraphQLClient
	limit   int
}

// NewAnalyticsClient creates an AnalyticsClient. limit caps the groups returned per family.
func NewAnalyticsClient(gql *client.GraphQLClient, limit int) *AnalyticsClient {
	return &AnalyticsClient{graphql: gql, limit: limit}
}

// FetchChunk issues one upstream request for every family of the chunk.
func (a *AnalyticsClient) FetchChunk(ctx context.Context, token string, q models.ChunkQuery) (models.ZoneAnalytics, error) {
	query, err := BuildChunkQuery(q, a.limit)
	if err != nil {
		return models.ZoneAnalytics{}, err
	}

	if err := limiter.Wait(ctx); err != nil {
		return models.ZoneAnalytics{}, fmt.Errorf("rate limit wait failed: %w", err)
	}

	logging.WithFields(logging.Fields{
		"zone_id":    q.ZoneID,
		"families":   q.Families,
		"hostname":   q.Hostname,
		"time_range": fmt.Sprintf("%s - %s", q.Range.From.Format(time.RFC3339), q.Range.To.Format(time.RFC3339)),
	}).Debug("Fetching analytics chunk from Cloudflare API")

	var resp models.AnalyticsResponse
	if err := a.graphql.Query(ctx, token, query.Text, query.Vars, &resp); err != nil {
		return models.ZoneAnalytics{}, err
	}

	if len(resp.Viewer.Zones) == 0 {
		return models.ZoneAnalytics{}, nil
	}
	return resp.Viewer.Zones[0], nil
}

package cloudflare_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lablabs/cloudflare-analytics-export/internal/client"
	"github.com/lablabs/cloudflare-analytics-export/internal/cloudflare"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

const graphqlURL = baseURL + "/graphql"

func TestFetchChunk_Mocked(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", graphqlURL,
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			var payload struct {
				Query     string                 `json:"query"`
				Variables map[string]interface{} `json:"variables"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Contains(t, payload.Query, "traffic:")
			assert.Contains(t, payload.Query, "cache:")
			assert.Equal(t, "zone1", payload.Variables["zoneTag"])

			return httpmock.NewStringResponse(200, `{
				"data": {
					"viewer": {
						"zones": [{
							"traffic": [
								{"dimensions": {"datetime": "2024-01-01T00:00:00Z"}, "uniq": {"uniques": 3}, "sum": {"requests": 10, "bytes": 100, "pageViews": 4, "threats": 1}}
							],
							"cache": [
								{"dimensions": {"datetime": "2024-01-01T00:00:00Z"}, "sum": {"requests": 10, "cachedRequests": 6, "bytes": 100, "cachedBytes": 70}}
							]
						}]
					}
				}
			}`), nil
		})

	gql := client.NewGraphQLClient(graphqlURL, nil)
	ac := cloudflare.NewAnalyticsClient(gql, 1000)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := ac.FetchChunk(context.Background(), "dummy-token", models.ChunkQuery{
		ZoneID:   "zone1",
		Range:    models.DateRange{From: from, To: from.Add(24 * time.Hour)},
		Families: []models.MetricFamily{models.FamilyTraffic, models.FamilyCache},
	})

	require.NoError(t, err)
	require.Len(t, res.Traffic, 1)
	require.Len(t, res.Cache, 1)
	assert.Equal(t, uint64(10), res.Traffic[0].Sum.Requests)
	assert.Equal(t, uint64(3), res.Traffic[0].Uniq.Uniques)
	assert.Equal(t, uint64(6), res.Cache[0].Sum.CachedRequests)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchChunk_NoZones(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", graphqlURL,
		httpmock.NewStringResponder(200, `{"data": {"viewer": {"zones": []}}}`))

	ac := cloudflare.NewAnalyticsClient(client.NewGraphQLClient(graphqlURL, nil), 1000)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := ac.FetchChunk(context.Background(), "t", models.ChunkQuery{
		ZoneID:   "zone1",
		Range:    models.DateRange{From: from, To: from.Add(time.Hour)},
		Families: []models.MetricFamily{models.FamilyTraffic},
	})

	require.NoError(t, err)
	assert.Empty(t, res.Traffic)
	assert.Empty(t, res.Cache)
}

func TestFetchChunk_UpstreamError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", graphqlURL,
		httpmock.NewStringResponder(200, `{"data": null, "errors": [{"message": "cannot request data older than 31 days"}]}`))

	ac := cloudflare.NewAnalyticsClient(client.NewGraphQLClient(graphqlURL, nil), 1000)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := ac.FetchChunk(context.Background(), "t", models.ChunkQuery{
		ZoneID:   "zone1",
		Range:    models.DateRange{From: from, To: from.Add(time.Hour)},
		Families: []models.MetricFamily{models.FamilyCache},
	})

	var upstream *client.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Error(), "cannot request data older than")
}

package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lablabs/cloudflare-analytics-export/internal/config"
	"github.com/lablabs/cloudflare-analytics-export/internal/export"
	"github.com/lablabs/cloudflare-analytics-export/internal/handlers"
)

func TestRunExport_CSV(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cfg := config.Default()
	httpmock.RegisterResponder("POST", cfg.GraphQLEndpoint, httpmock.NewStringResponder(200, `{
		"data": {"viewer": {"zones": [{
			"traffic": [{"dimensions": {"datetime": "2024-01-01T00:00:00Z"}, "uniq": {"uniques": 2}, "sum": {"requests": 10, "bytes": 100, "pageViews": 3, "threats": 0}}],
			"cache": []
		}]}}
	}`))

	req, err := handlers.NewExportRequest("zone1", "2024-01-01", "2024-01-01", "", nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runExport(context.Background(), cfg, &out, "token", req, export.FormatCSV))

	assert.Contains(t, out.String(), "# TRAFFIC\n")
	assert.Contains(t, out.String(), "2024-01-01T00:00:00Z")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRunExport_InvalidRequest(t *testing.T) {
	_, err := handlers.NewExportRequest("zone1", "2024-01-02", "2024-01-01T00:00:00Z", "", nil)
	assert.Error(t, err)

	_, err = handlers.NewExportRequest("", "2024-01-01", "2024-01-02", "", nil)
	assert.Error(t, err)
}

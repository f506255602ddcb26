package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lablabs/cloudflare-analytics-export/internal/client"
)

const endpoint = "https://api.cloudflare.com/client/v4/graphql"

func TestRetryableClient_RetriesTransportErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("POST", "https://example.com/token",
		func(req *http.Request) (*http.Response, error) {
			calls++
			body, _ := io.ReadAll(req.Body)
			assert.Equal(t, "grant_type=refresh_token", string(body))
			if calls == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return httpmock.NewStringResponse(200, `{}`), nil
		})

	rc := client.NewRetryableClient(3, time.Millisecond, time.Second)
	req, err := http.NewRequest("POST", "https://example.com/token", strings.NewReader("grant_type=refresh_token"))
	require.NoError(t, err)

	resp, err := rc.HTTPClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestRetryableClient_DoesNotRetryHTTPStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://example.com/x", httpmock.NewStringResponder(503, "down"))

	rc := client.NewRetryableClient(3, time.Millisecond, time.Second)
	req, _ := http.NewRequest("GET", "https://example.com/x", nil)

	resp, err := rc.HTTPClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRetryableClient_GivesUp(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://example.com/x", httpmock.NewErrorResponder(errors.New("dns failure")))

	rc := client.NewRetryableClient(2, time.Millisecond, time.Second)
	req, _ := http.NewRequest("GET", "https://example.com/x", nil)

	_, err := rc.HTTPClient().Do(req)
	assert.Error(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestGraphQLClient_Success(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer dummy-token", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(200, `{"data":{"viewer":{"name":"ok"}}}`), nil
		})

	gql := client.NewGraphQLClient(endpoint, client.NewRetryableClient(1, 0, time.Second).HTTPClient())

	var resp struct {
		Viewer struct {
			Name string `json:"name"`
		} `json:"viewer"`
	}
	err := gql.Query(context.Background(), "dummy-token", `{ viewer { name } }`, nil, &resp)

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Viewer.Name)
}

func TestGraphQLClient_Non2xx(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(500, `<html>oops</html>`))

	gql := client.NewGraphQLClient(endpoint, nil)

	var resp map[string]interface{}
	err := gql.Query(context.Background(), "t", `{ viewer { name } }`, nil, &resp)

	var upstream *client.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 500, upstream.Status)
	assert.Equal(t, "<html>oops</html>", upstream.Body)
	assert.Contains(t, upstream.Error(), "status 500")
}

func TestGraphQLClient_GraphQLErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(200,
		`{"data":null,"errors":[{"message":"zone 'abc' does not have access to the path"}]}`))

	gql := client.NewGraphQLClient(endpoint, nil)

	var resp map[string]interface{}
	err := gql.Query(context.Background(), "t", `{ viewer { name } }`, nil, &resp)

	var upstream *client.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 200, upstream.Status)
	assert.Equal(t, "zone 'abc' does not have access to the path", upstream.Error())
}

func TestGraphQLClient_TransportError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint, httpmock.NewErrorResponder(errors.New("no route to host")))

	gql := client.NewGraphQLClient(endpoint, nil)

	var resp map[string]interface{}
	err := gql.Query(context.Background(), "t", `{ viewer { name } }`, nil, &resp)

	require.Error(t, err)
	var upstream *client.UpstreamError
	assert.False(t, errors.As(err, &upstream))
}

func TestGraphQLClient_HTMLErrorPage(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", endpoint, httpmock.NewStringResponder(502, `<html>502 Bad Gateway</html>`))

	gql := client.NewGraphQLClient(endpoint, nil)

	var resp map[string]interface{}
	err := gql.Query(context.Background(), "t", `{ viewer { name } }`, nil, &resp)

	var upstream *client.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Empty(t, upstream.Message)
	assert.Equal(t, "upstream returned status 502: <html>502 Bad Gateway</html>", upstream.Error())
}

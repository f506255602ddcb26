package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	logging "github.com/sirupsen/logrus"
)

// UpstreamError is returned when the upstream API answers with a non-2xx status
// or a non-empty GraphQL error list.
type UpstreamError struct {
	Status  int
	Body    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, body)
}

// GraphQLClient represents a client for interacting with GraphQL APIs.
type GraphQLClient struct {
	endpoint  string
	transport http.RoundTripper
	timeout   time.Duration
}

// NewGraphQLClient creates and returns a new GraphQLClient for the specified endpoint.
// Requests go through the transport of httpClient; nil means http.DefaultTransport.
func NewGraphQLClient(endpoint string, httpClient *http.Client) *GraphQLClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GraphQLClient{endpoint: endpoint, transport: httpClient.Transport, timeout: httpClient.Timeout}
}

// Query executes a GraphQL query with a bearer token and populates the response into the provided interface.
func (g *GraphQLClient) Query(ctx context.Context, token, query string, vars map[string]interface{}, response interface{}) error {
	base := g.transport
	if base == nil {
		base = http.DefaultTransport
	}
	rec := &responseRecorder{base: base}
	gql := graphql.NewClient(g.endpoint, graphql.WithHTTPClient(&http.Client{
		Transport: rec,
		Timeout:   g.timeout,
	}))
	gql.Log = func(s string) {
		logging.WithField("endpoint", g.endpoint).Trace(s)
	}

	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	err := gql.Run(ctx, req, response)
	if rec.status != 0 && (rec.status < 200 || rec.status > 299) {
		return &UpstreamError{Status: rec.status, Body: string(rec.body), Message: graphQLMessage(err)}
	}
	if err != nil {
		if rec.status == 0 {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		return &UpstreamError{Status: rec.status, Body: string(rec.body), Message: graphQLMessage(err)}
	}
	return nil
}

// graphQLMessage returns the upstream wording of a decoded GraphQL error. Decode and
// status errors of the library yield "" so UpstreamError reports the status and body.
func graphQLMessage(err error) string {
	if err == nil {
		return ""
	}
	msg, ok := strings.CutPrefix(err.Error(), "graphql: ")
	if !ok || strings.HasPrefix(msg, "server returned a non-200 status code") {
		return ""
	}
	return msg
}

// responseRecorder keeps the status and body of the last response it carried.
type responseRecorder struct {
	base   http.RoundTripper
	status int
	body   []byte
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	r.status = resp.StatusCode
	r.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

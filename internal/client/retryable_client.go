package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	logging "github.com/sirupsen/logrus"
)

// RetryableClient struct for retry mechanism. Only transport failures are retried;
// any HTTP response, whatever its status, is returned to the caller.
type RetryableClient struct {
	client        *http.Client
	base          http.RoundTripper
	retryMax      int
	retryInterval time.Duration
}

// NewRetryableClient handles retrying client with interval.
func NewRetryableClient(retryMax int, retryInterval time.Duration, timeout time.Duration) *RetryableClient {
	if retryMax < 1 {
		retryMax = 1
	}
	r := &RetryableClient{retryMax: retryMax, retryInterval: retryInterval}
	r.client = &http.Client{
		Timeout:   timeout,
		Transport: r,
	}
	return r
}

// HTTPClient returns an *http.Client whose transport retries through r.
func (r *RetryableClient) HTTPClient() *http.Client {
	return r.client
}

// RoundTrip implements http.RoundTripper.
func (r *RetryableClient) RoundTrip(req *http.Request) (*http.Response, error) {
	base := r.base
	if base == nil {
		base = http.DefaultTransport
	}

	var resp *http.Response
	var err error
	for i := 0; i < r.retryMax; i++ {
		attempt := req
		if i > 0 {
			if attempt, err = rewind(req); err != nil {
				return nil, err
			}
			if err := sleep(req.Context(), r.retryInterval); err != nil {
				return nil, err
			}
		}
		resp, err = base.RoundTrip(attempt)
		if err == nil {
			return resp, nil
		}
		logging.WithFields(logging.Fields{
			"attempt": i + 1,
			"host":    req.URL.Host,
			"error":   err.Error(),
		}).Warn("Upstream request failed, retrying...")
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", r.retryMax, err)
}

// rewind clones req with a fresh body so a retry never resends a drained reader.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

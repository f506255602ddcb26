package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	logging "github.com/sirupsen/logrus"

	"github.com/lablabs/cloudflare-analytics-export/internal/metrics"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// AnalyticsClient fetches the raw rows of one chunk.
type AnalyticsClient interface {
	FetchChunk(ctx context.Context, token string, q models.ChunkQuery) (models.ZoneAnalytics, error)
}

// ExportRequest describes one export over a caller-supplied range.
type ExportRequest struct {
	ZoneID   string
	Range    models.DateRange
	Hostname string
	Families []models.MetricFamily
}

// Exporter runs the chunked fetch and merge of an export.
type Exporter struct {
	client  AnalyticsClient
	pool    *workerpool.WorkerPool
	maxSpan time.Duration
}

// NewExporter creates an Exporter that fans chunk queries out on pool.
func NewExporter(client AnalyticsClient, pool *workerpool.WorkerPool, maxSpan time.Duration) *Exporter {
	return &Exporter{client: client, pool: pool, maxSpan: maxSpan}
}

// Export fetches every chunk of req and returns the finalized result. Any failing chunk
// aborts the export; no partial result is returned.
func (e *Exporter) Export(ctx context.Context, token string, req ExportRequest) (models.AggregationResult, error) {
	chunks, err := Chunk(req.Range.From, req.Range.To, e.maxSpan)
	if err != nil {
		return models.AggregationResult{}, err
	}

	families := req.Families
	if len(families) == 0 {
		families = models.RequestableFamilies
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]models.ZoneAnalytics, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		i, chunk := i, chunk
		wg.Add(1)
		e.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			res, err := e.client.FetchChunk(ctx, token, models.ChunkQuery{
				ZoneID:   req.ZoneID,
				Range:    chunk,
				Hostname: req.Hostname,
				Families: families,
			})
			if err != nil {
				metrics.IncChunkQuery(metrics.OutcomeError)
				errs[i] = err
				cancel()
				return
			}
			metrics.IncChunkQuery(metrics.OutcomeSuccess)
			results[i] = res
		})
	}
	wg.Wait()

	// Report the earliest chunk that failed for its own reason; later chunks may only
	// carry the cancellation it caused.
	if err := firstError(errs); err != nil {
		logging.WithFields(logging.Fields{
			"zone_id": req.ZoneID,
			"chunks":  len(chunks),
			"error":   err.Error(),
		}).Warn("Analytics export aborted")
		return models.AggregationResult{}, err
	}

	acc := NewAccumulator(req.Hostname != "")
	for _, res := range results {
		acc.Accumulate(res)
	}

	logging.WithFields(logging.Fields{
		"zone_id": req.ZoneID,
		"chunks":  len(chunks),
	}).Debug("Analytics export merged")

	return acc.Finalize(), nil
}

func firstError(errs []error) error {
	var cancelled error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if cancelled == nil {
				cancelled = fmt.Errorf("chunk %d: %w", i, err)
			}
			continue
		}
		return err
	}
	return cancelled
}

package analytics

import (
	"strings"

	"github.com/samber/lo"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

const (
	cacheHit       = "hit"
	cacheMiss      = "miss"
	statusSuccess  = "success"
	threatsBlocked = "Threats Blocked"
)

// cachedStatuses are the adaptive cacheStatus values served from the edge cache.
var cachedStatuses = []string{"hit", "stale", "updating", "revalidated"}

// Accumulator collects raw chunk rows per family in the order they are added.
type Accumulator struct {
	hostFiltered bool
	traffic      []models.RawMetricRow
	cache        []models.RawMetricRow
}

// NewAccumulator creates an Accumulator. hostFiltered selects the adaptive row layout
// produced by hostname-filtered queries.
func NewAccumulator(hostFiltered bool) *Accumulator {
	return &Accumulator{hostFiltered: hostFiltered}
}

// Accumulate appends the rows of one chunk. Chunks must be added in chunk order.
func (a *Accumulator) Accumulate(chunk models.ZoneAnalytics) {
	a.traffic = append(a.traffic, chunk.Traffic...)
	a.cache = append(a.cache, chunk.Cache...)
}

// Finalize derives the caller-facing result. It does not modify the accumulated rows and
// returns equal results on every call.
func (a *Accumulator) Finalize() models.AggregationResult {
	traffic := lo.Map(a.traffic, func(row models.RawMetricRow, _ int) models.NormalizedRecord {
		return a.trafficRecord(row)
	})

	totalRequests := lo.SumBy(traffic, func(r models.NormalizedRecord) int64 { return r.Sum["requests"] })
	totalThreats := lo.SumBy(traffic, func(r models.NormalizedRecord) int64 { return r.Sum["threats"] })

	status := []models.NormalizedRecord{}
	if success := clamp(totalRequests - totalThreats); success > 0 {
		status = append(status, models.NormalizedRecord{
			Dimensions: map[string]string{"status": statusSuccess},
			Count:      success,
			Sum:        map[string]int64{},
		})
	}

	security := []models.NormalizedRecord{}
	if totalThreats > 0 {
		security = append(security, models.NormalizedRecord{
			Dimensions: map[string]string{"action": threatsBlocked},
			Count:      totalThreats,
			Sum:        map[string]int64{},
		})
	}

	return models.AggregationResult{
		Traffic:  traffic,
		Cache:    a.cacheRecords(),
		Status:   status,
		Security: security,
		// The analytics tier behind these datasets exposes no country breakdown.
		Geo: []models.NormalizedRecord{},
	}
}

func (a *Accumulator) trafficRecord(row models.RawMetricRow) models.NormalizedRecord {
	if a.hostFiltered {
		requests := int64(row.Count)
		return models.NormalizedRecord{
			Dimensions: map[string]string{"datetime": row.Dimensions.DatetimeHour},
			Count:      requests,
			Sum: map[string]int64{
				"unique_visitors": 0,
				"requests":        requests,
				"bytes":           int64(row.Sum.EdgeResponseBytes),
				"page_views":      int64(row.Sum.Visits),
				"threats":         0,
			},
		}
	}

	requests := int64(row.Sum.Requests)
	return models.NormalizedRecord{
		Dimensions: map[string]string{"datetime": row.Dimensions.Datetime},
		Count:      requests,
		Sum: map[string]int64{
			"unique_visitors": int64(row.Uniq.Uniques),
			"requests":        requests,
			"bytes":           int64(row.Sum.Bytes),
			"page_views":      int64(row.Sum.PageViews),
			"threats":         int64(row.Sum.Threats),
		},
	}
}

func (a *Accumulator) cacheRecords() []models.NormalizedRecord {
	var hitCount, hitBytes, missCount, missBytes int64

	if a.hostFiltered {
		for _, row := range a.cache {
			if lo.Contains(cachedStatuses, strings.ToLower(row.Dimensions.CacheStatus)) {
				hitCount += int64(row.Count)
				hitBytes += int64(row.Sum.EdgeResponseBytes)
			} else {
				missCount += int64(row.Count)
				missBytes += int64(row.Sum.EdgeResponseBytes)
			}
		}
	} else {
		var totalCount, totalBytes int64
		for _, row := range a.cache {
			totalCount += int64(row.Sum.Requests)
			totalBytes += int64(row.Sum.Bytes)
			hitCount += int64(row.Sum.CachedRequests)
			hitBytes += int64(row.Sum.CachedBytes)
		}
		missCount = clamp(totalCount - hitCount)
		missBytes = clamp(totalBytes - hitBytes)
	}

	records := []models.NormalizedRecord{}
	if hitCount > 0 {
		records = append(records, cacheRecord(cacheHit, hitCount, hitBytes))
	}
	if missCount > 0 {
		records = append(records, cacheRecord(cacheMiss, missCount, missBytes))
	}
	return records
}

func cacheRecord(status string, count, bytes int64) models.NormalizedRecord {
	return models.NormalizedRecord{
		Dimensions: map[string]string{"cacheStatus": status},
		Count:      count,
		Sum:        map[string]int64{"bytes": bytes},
	}
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

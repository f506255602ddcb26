package models

import "time"

// MetricFamily names a group of upstream aggregate fields fetched together.
type MetricFamily string

const (
	FamilyTraffic  MetricFamily = "traffic"
	FamilyCache    MetricFamily = "cache"
	FamilyStatus   MetricFamily = "status"
	FamilySecurity MetricFamily = "security"
	FamilyGeo      MetricFamily = "geo"
)

// RequestableFamilies lists the families that are fetched from the upstream API.
// The remaining families are derived from them.
var RequestableFamilies = []MetricFamily{FamilyTraffic, FamilyCache}

// String implements fmt.Stringer.
func (f MetricFamily) String() string {
	return string(f)
}

// Requestable reports whether the family can be queried directly.
func (f MetricFamily) Requestable() bool {
	return f == FamilyTraffic || f == FamilyCache
}

// DateRange is a half-open [From, To) interval.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Span returns the length of the range.
func (r DateRange) Span() time.Duration {
	return r.To.Sub(r.From)
}

// ChunkQuery describes a single bounded upstream analytics query.
type ChunkQuery struct {
	ZoneID   string
	Range    DateRange
	Hostname string
	Families []MetricFamily
}

// AnalyticsResponse represents the Cloudflare GraphQL response for a composed chunk query.
type AnalyticsResponse struct {
	Viewer struct {
		Zones []ZoneAnalytics `json:"zones"`
	} `json:"viewer"`
}

// ZoneAnalytics holds the raw groups of one chunk, keyed by the alias of each family.
type ZoneAnalytics struct {
	Traffic []RawMetricRow `json:"traffic"`
	Cache   []RawMetricRow `json:"cache"`
}

// RawMetricRow is a single upstream group. Every field is optional and zero when absent.
type RawMetricRow struct {
	Count      uint64 `json:"count"`
	Dimensions struct {
		Datetime     string `json:"datetime"`
		DatetimeHour string `json:"datetimeHour"`
		CacheStatus  string `json:"cacheStatus"`
	} `json:"dimensions"`
	Uniq struct {
		Uniques uint64 `json:"uniques"`
	} `json:"uniq"`
	Sum struct {
		Requests          uint64 `json:"requests"`
		Bytes             uint64 `json:"bytes"`
		CachedRequests    uint64 `json:"cachedRequests"`
		CachedBytes       uint64 `json:"cachedBytes"`
		PageViews         uint64 `json:"pageViews"`
		Threats           uint64 `json:"threats"`
		Visits            uint64 `json:"visits"`
		EdgeResponseBytes uint64 `json:"edgeResponseBytes"`
	} `json:"sum"`
}

// NormalizedRecord is the caller-facing shape shared by every family.
type NormalizedRecord struct {
	Dimensions map[string]string `json:"dimensions"`
	Count      int64             `json:"count"`
	Sum        map[string]int64  `json:"sum"`
}

// AggregationResult is the merged and derived result of an export.
type AggregationResult struct {
	Traffic  []NormalizedRecord `json:"traffic"`
	Cache    []NormalizedRecord `json:"cache"`
	Status   []NormalizedRecord `json:"status"`
	Security []NormalizedRecord `json:"security"`
	Geo      []NormalizedRecord `json:"geo"`
}

// ValidationResult is the outcome of validating an API token against a zone.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	ZoneName string `json:"zoneName,omitempty"`
	ZoneID   string `json:"zoneId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ZoneSummary is a zone as presented to the zone picker.
type ZoneSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

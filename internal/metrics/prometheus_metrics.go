package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricName represent metric name
type MetricName string

func (mn MetricName) String() string {
	return string(mn)
}

const (
	exportRequestsMetricName   MetricName = "cloudflare_export_requests_total"
	exportDurationMetricName   MetricName = "cloudflare_export_duration_seconds"
	chunkQueriesMetricName     MetricName = "cloudflare_export_chunk_queries_total"
	tokenRefreshesMetricName   MetricName = "cloudflare_export_token_refreshes_total"
	tokenValidationsMetricName MetricName = "cloudflare_export_token_validations_total"
	credentialsSavedMetricName MetricName = "cloudflare_export_credentials_saved_total"
	upstreamErrorsMetricName   MetricName = "cloudflare_export_upstream_errors_total"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Set map to check metric name availability.
type Set map[MetricName]struct{}

// Has function check and return bool for metric availability.
func (ms Set) Has(mn MetricName) bool {
	_, exists := ms[mn]
	return exists
}

// Add function add metric name.
func (ms Set) Add(mn MetricName) {
	ms[mn] = struct{}{}
}

var (
	exportRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: exportRequestsMetricName.String(),
		Help: "Number of analytics exports per format and outcome",
	}, []string{"format", "outcome"},
	)

	exportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    exportDurationMetricName.String(),
		Help:    "Duration of analytics exports in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"format"},
	)

	chunkQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: chunkQueriesMetricName.String(),
		Help: "Number of upstream chunk queries per outcome",
	}, []string{"outcome"},
	)

	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: tokenRefreshesMetricName.String(),
		Help: "Number of OAuth token refreshes per outcome",
	}, []string{"outcome"},
	)

	tokenValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: tokenValidationsMetricName.String(),
		Help: "Number of API token validations per result",
	}, []string{"valid"},
	)

	credentialsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: credentialsSavedMetricName.String(),
		Help: "Number of stored credentials per kind",
	}, []string{"kind"},
	)

	upstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: upstreamErrorsMetricName.String(),
		Help: "Number of upstream errors returned to callers per HTTP status",
	}, []string{"status"},
	)
)

// BuildAllMetricsSet helps to build all metric and return as Set.
func BuildAllMetricsSet() Set {
	allMetricsSet := Set{}
	allMetricsSet.Add(exportRequestsMetricName)
	allMetricsSet.Add(exportDurationMetricName)
	allMetricsSet.Add(chunkQueriesMetricName)
	allMetricsSet.Add(tokenRefreshesMetricName)
	allMetricsSet.Add(tokenValidationsMetricName)
	allMetricsSet.Add(credentialsSavedMetricName)
	allMetricsSet.Add(upstreamErrorsMetricName)
	return allMetricsSet
}

// BuildDeniedMetricsSet returns Set and error.
func BuildDeniedMetricsSet(metricsDenylist []string) (Set, error) {
	deniedMetricsSet := Set{}
	allMetricsSet := BuildAllMetricsSet()
	for _, metric := range metricsDenylist {
		if !allMetricsSet.Has(MetricName(metric)) {
			return nil, fmt.Errorf("metric %s doesn't exists", metric)
		}
		deniedMetricsSet.Add(MetricName(metric))
	}
	return deniedMetricsSet, nil
}

// MustRegisterMetrics registers every metric not in deniedMetrics with reg.
func MustRegisterMetrics(reg prometheus.Registerer, deniedMetrics Set) {
	collectors := map[MetricName]prometheus.Collector{
		exportRequestsMetricName:   exportRequests,
		exportDurationMetricName:   exportDuration,
		chunkQueriesMetricName:     chunkQueries,
		tokenRefreshesMetricName:   tokenRefreshes,
		tokenValidationsMetricName: tokenValidations,
		credentialsSavedMetricName: credentialsSaved,
		upstreamErrorsMetricName:   upstreamErrors,
	}
	for name, c := range collectors {
		if !deniedMetrics.Has(name) {
			reg.MustRegister(c)
		}
	}
}

// ObserveExport records one finished export.
func ObserveExport(format, outcome string, elapsed time.Duration) {
	exportRequests.WithLabelValues(format, outcome).Inc()
	exportDuration.WithLabelValues(format).Observe(elapsed.Seconds())
}

// IncChunkQuery counts one upstream chunk query.
func IncChunkQuery(outcome string) {
	chunkQueries.WithLabelValues(outcome).Inc()
}

// IncTokenRefresh counts one OAuth refresh attempt.
func IncTokenRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

func IncTokenValidation(valid bool) {
	tokenValidations.WithLabelValues(fmt.Sprint(valid)).Inc()
}

func IncCredentialSaved(kind string) {
	credentialsSaved.WithLabelValues(kind).Inc()
}

func IncUpstreamError(status int) {
	upstreamErrors.WithLabelValues(fmt.Sprint(status)).Inc()
}

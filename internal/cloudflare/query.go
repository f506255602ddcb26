package cloudflare

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// Fragment is the selection of one metric family within a zone query.
type Fragment struct {
	Family    models.MetricFamily
	Selection string
	Vars      map[string]interface{}
}

// Query is a complete GraphQL request.
type Query struct {
	Text string
	Vars map[string]interface{}
}

const (
	hourlyFilter   = `{ datetime_geq: $from, datetime_lt: $to }`
	adaptiveFilter = `{ datetime_geq: $from, datetime_lt: $to, requestSource: "eyeball", clientRequestHTTPHost: $host }`
)

// Build returns the fragment for one family over one chunk. The hourly dataset cannot be
// filtered by host, so a hostname switches the fragment to the adaptive dataset.
func Build(family models.MetricFamily, zoneID string, chunk models.DateRange, hostname string) (Fragment, error) {
	if zoneID == "" {
		return Fragment{}, fmt.Errorf("zone id is required")
	}
	vars := map[string]interface{}{
		"zoneTag": zoneID,
		"from":    chunk.From.UTC().Format(time.RFC3339),
		"to":      chunk.To.UTC().Format(time.RFC3339),
	}
	if hostname != "" {
		vars["host"] = hostname
	}

	var body string
	switch {
	case family == models.FamilyTraffic && hostname == "":
		body = `httpRequests1hGroups(limit: $limit, filter: ` + hourlyFilter + `, orderBy: [datetime_ASC]) {
				dimensions { datetime }
				uniq { uniques }
				sum { requests bytes pageViews threats }
			}`
	case family == models.FamilyCache && hostname == "":
		body = `httpRequests1hGroups(limit: $limit, filter: ` + hourlyFilter + `, orderBy: [datetime_ASC]) {
				dimensions { datetime }
				sum { requests cachedRequests bytes cachedBytes }
			}`
	case family == models.FamilyTraffic:
		body = `httpRequestsAdaptiveGroups(limit: $limit, filter: ` + adaptiveFilter + `, orderBy: [datetimeHour_ASC]) {
				count
				dimensions { datetimeHour }
				sum { visits edgeResponseBytes }
			}`
	case family == models.FamilyCache:
		body = `httpRequestsAdaptiveGroups(limit: $limit, filter: ` + adaptiveFilter + `) {
				count
				dimensions { cacheStatus }
				sum { edgeResponseBytes }
			}`
	default:
		return Fragment{}, fmt.Errorf("metric family %q cannot be queried", family)
	}

	return Fragment{
		Family:    family,
		Selection: family.String() + ": " + body,
		Vars:      vars,
	}, nil
}

// Compose merges fragments of the same zone and chunk into a single request.
func Compose(limit int, fragments ...Fragment) (Query, error) {
	if len(fragments) == 0 {
		return Query{}, fmt.Errorf("no fragments to compose")
	}

	vars := map[string]interface{}{"limit": limit}
	seen := map[models.MetricFamily]bool{}
	selections := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if seen[f.Family] {
			return Query{}, fmt.Errorf("metric family %q requested twice", f.Family)
		}
		seen[f.Family] = true
		for k, v := range f.Vars {
			if prev, ok := vars[k]; ok && prev != v {
				return Query{}, fmt.Errorf("fragments disagree on variable %q", k)
			}
			vars[k] = v
		}
		selections = append(selections, f.Selection)
	}

	params := []string{"$zoneTag: String!", "$from: Time!", "$to: Time!", "$limit: Int!"}
	if _, ok := vars["host"]; ok {
		params = append(params, "$host: String!")
	}

	var b strings.Builder
	b.WriteString("query (" + strings.Join(params, ", ") + ") {\n")
	b.WriteString("\tviewer {\n\t\tzones(filter: { zoneTag: $zoneTag }) {\n")
	for _, s := range selections {
		b.WriteString("\t\t\t" + s + "\n")
	}
	b.WriteString("\t\t}\n\t}\n}")

	return Query{Text: b.String(), Vars: vars}, nil
}

// BuildChunkQuery builds the single request that fetches every requested family of one chunk.
func BuildChunkQuery(q models.ChunkQuery, limit int) (Query, error) {
	families := append([]models.MetricFamily(nil), q.Families...)
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })

	fragments := make([]Fragment, 0, len(families))
	for _, family := range families {
		f, err := Build(family, q.ZoneID, q.Range, q.Hostname)
		if err != nil {
			return Query{}, err
		}
		fragments = append(fragments, f)
	}
	return Compose(limit, fragments...)
}

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// Format is an export output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat resolves s to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the media type of rendered output.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Filename returns the attachment name for an export of zoneID.
func Filename(zoneID string, f Format) string {
	return fmt.Sprintf("cf_%s.%s", zoneID, f)
}

// column reads one cell of a record.
type column struct {
	header string
	value  func(r models.NormalizedRecord) string
}

type section struct {
	family  models.MetricFamily
	records func(res models.AggregationResult) []models.NormalizedRecord
	columns []column
}

func dim(key string) column {
	return column{header: key, value: func(r models.NormalizedRecord) string { return r.Dimensions[key] }}
}

func sum(header, key string) column {
	return column{header: header, value: func(r models.NormalizedRecord) string {
		return strconv.FormatInt(r.Sum[key], 10)
	}}
}

var count = column{header: "count", value: func(r models.NormalizedRecord) string {
	return strconv.FormatInt(r.Count, 10)
}}

var sections = []section{
	{
		family:  models.FamilyTraffic,
		records: func(res models.AggregationResult) []models.NormalizedRecord { return res.Traffic },
		columns: []column{
			dim("datetime"),
			sum("unique_visitors", "unique_visitors"),
			sum("requests", "requests"),
			sum("bytes", "bytes"),
			sum("page_views", "page_views"),
			sum("threats", "threats"),
		},
	},
	{
		family:  models.FamilyCache,
		records: func(res models.AggregationResult) []models.NormalizedRecord { return res.Cache },
		columns: []column{dim("cacheStatus"), count, sum("bytes", "bytes")},
	},
	{
		family:  models.FamilyStatus,
		records: func(res models.AggregationResult) []models.NormalizedRecord { return res.Status },
		columns: []column{dim("status"), count},
	},
	{
		family:  models.FamilySecurity,
		records: func(res models.AggregationResult) []models.NormalizedRecord { return res.Security },
		columns: []column{dim("action"), count},
	},
	{
		family:  models.FamilyGeo,
		records: func(res models.AggregationResult) []models.NormalizedRecord { return res.Geo },
		columns: []column{
			dim("country"),
			sum("requests", "requests"),
			sum("bytes", "bytes"),
			sum("threats", "threats"),
		},
	},
}

// ToJSON renders the full result.
func ToJSON(res models.AggregationResult) ([]byte, error) {
	out, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return out, nil
}

// ToCSV renders one section per non-empty family, separated by a blank line.
func ToCSV(res models.AggregationResult) ([]byte, error) {
	var buf bytes.Buffer
	first := true

	for _, s := range sections {
		records := s.records(res)
		if len(records) == 0 {
			continue
		}
		if !first {
			buf.WriteString("\n")
		}
		first = false

		buf.WriteString("# " + strings.ToUpper(s.family.String()) + "\n")
		w := csv.NewWriter(&buf)
		header := make([]string, len(s.columns))
		for i, c := range s.columns {
			header[i] = c.header
		}
		if err := w.Write(header); err != nil {
			return nil, fmt.Errorf("failed to write %s header: %w", s.family, err)
		}
		for _, r := range records {
			row := make([]string, len(s.columns))
			for i, c := range s.columns {
				row[i] = c.value(r)
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("failed to write %s row: %w", s.family, err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("failed to flush %s section: %w", s.family, err)
		}
	}
	return buf.Bytes(), nil
}

// Render renders res in format f.
func Render(res models.AggregationResult, f Format) ([]byte, error) {
	if f == FormatCSV {
		return ToCSV(res)
	}
	return ToJSON(res)
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/lablabs/cloudflare-analytics-export/internal/analytics"
	"github.com/lablabs/cloudflare-analytics-export/internal/export"
	"github.com/lablabs/cloudflare-analytics-export/internal/metrics"
	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

const dateOnly = "2006-01-02"

type exportRequest struct {
	APIToken string   `json:"apiToken"`
	UserID   string   `json:"userId"`
	ZoneID   string   `json:"zoneId"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Hostname string   `json:"hostname"`
	Metrics  []string `json:"metrics"`
	Format   string   `json:"format"`
}

// Export handles POST /api/analytics/export.
func (h *Handlers) Export(c *gin.Context) {
	start := time.Now()

	var body exportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(invalid("Request body must be a JSON object."))
		return
	}

	format, err := export.ParseFormat(body.Format)
	if err != nil {
		_ = c.Error(invalid("format must be json or csv."))
		return
	}

	req, err := buildExportRequest(body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	token := strings.TrimSpace(body.APIToken)
	if token == "" {
		if body.UserID == "" {
			_ = c.Error(invalid("Missing apiToken or userId."))
			return
		}
		if token, err = h.credentials.Resolve(c.Request.Context(), body.UserID); err != nil {
			_ = c.Error(err)
			return
		}
	}

	res, err := h.exporter.Export(c.Request.Context(), token, req)
	if err != nil {
		metrics.ObserveExport(string(format), metrics.OutcomeError, time.Since(start))
		_ = c.Error(err)
		return
	}

	out, err := export.Render(res, format)
	if err != nil {
		_ = c.Error(err)
		return
	}
	metrics.ObserveExport(string(format), metrics.OutcomeSuccess, time.Since(start))

	if format == export.FormatCSV {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(req.ZoneID, format)))
	}
	c.Data(http.StatusOK, format.ContentType(), out)
}

// NewExportRequest validates raw export parameters the same way the HTTP endpoint does.
func NewExportRequest(zoneID, from, to, hostname string, metricNames []string) (analytics.ExportRequest, error) {
	return buildExportRequest(exportRequest{
		ZoneID:   zoneID,
		From:     from,
		To:       to,
		Hostname: hostname,
		Metrics:  metricNames,
	})
}

func buildExportRequest(body exportRequest) (analytics.ExportRequest, error) {
	if body.ZoneID == "" || body.From == "" || body.To == "" {
		return analytics.ExportRequest{}, invalid("zoneId, from, to are required")
	}

	from, err := parseInstant(body.From, false)
	if err != nil {
		return analytics.ExportRequest{}, invalid(fmt.Sprintf("Invalid from: %s", body.From))
	}
	to, err := parseInstant(body.To, true)
	if err != nil {
		return analytics.ExportRequest{}, invalid(fmt.Sprintf("Invalid to: %s", body.To))
	}
	if !from.Before(to) {
		return analytics.ExportRequest{}, fmt.Errorf("%w: from %s, to %s", analytics.ErrInvalidRange, body.From, body.To)
	}

	families, err := parseFamilies(body.Metrics)
	if err != nil {
		return analytics.ExportRequest{}, err
	}

	return analytics.ExportRequest{
		ZoneID:   body.ZoneID,
		Range:    models.DateRange{From: from, To: to},
		Hostname: strings.TrimSpace(body.Hostname),
		Families: families,
	}, nil
}

// parseInstant accepts RFC3339 or a bare date. A bare end date covers that whole day.
func parseInstant(v string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		t = t.Add(24 * time.Hour)
	}
	return t, nil
}

func parseFamilies(names []string) ([]models.MetricFamily, error) {
	if len(names) == 0 {
		return models.RequestableFamilies, nil
	}
	families := lo.Uniq(lo.Map(names, func(n string, _ int) models.MetricFamily {
		return models.MetricFamily(strings.ToLower(strings.TrimSpace(n)))
	}))
	if bad, found := lo.Find(families, func(f models.MetricFamily) bool { return !f.Requestable() }); found {
		return nil, invalid(fmt.Sprintf("Unsupported metric %q. Supported metrics: traffic, cache.", bad))
	}
	return families, nil
}

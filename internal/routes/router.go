package routes

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lablabs/cloudflare-analytics-export/internal/config"
	"github.com/lablabs/cloudflare-analytics-export/internal/handlers"
	"github.com/lablabs/cloudflare-analytics-export/internal/logging"
	"github.com/lablabs/cloudflare-analytics-export/internal/metrics"
	"github.com/lablabs/cloudflare-analytics-export/internal/middlewares"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers every route on a fresh engine.
func NewRouter(cfg config.Config, h *handlers.Handlers, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(logging.RequestLogger())
	r.Use(middlewares.CORS(cfg.CORSAllowedOrigins)) // For handling CORS requests
	r.Use(handlers.ErrorHandler())                  // for handling error

	r.GET("/health", handlers.HealthCheck)
	r.GET(cfg.MetricsPath, metrics.Handler(gatherer))

	api := r.Group("/api")
	api.POST("/analytics/export", h.Export)
	api.POST("/credentials/save", h.SaveCredentials)
	api.POST("/credentials/validate", h.ValidateCredentials)
	api.POST("/oauth/start", h.OAuthStart)
	api.GET("/oauth/callback", h.OAuthCallback)
	api.POST("/zones/list", h.ListZones)

	return r
}

// Run serves the API until SIGINT or SIGTERM.
func Run(cfg config.Config) error {
	logging.Info("Starting analytics export server", map[string]interface{}{"listen": cfg.Listen})

	deniedMetricsSet, err := metrics.BuildDeniedMetricsSet(cfg.MetricsDenylist)
	if err != nil {
		return err
	}
	metrics.MustRegisterMetrics(prometheus.DefaultRegisterer, deniedMetricsSet)
	logging.Info("Metrics registered successfully", map[string]interface{}{"metricsDenylist": cfg.MetricsDenylist})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := NewServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			logging.Error("Error closing services", map[string]interface{}{"error": err.Error()})
		}
	}()

	if !services.OAuth.Configured() {
		logging.Warn("OAuth client is not configured, only static API tokens can be used", nil)
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewRouter(cfg, services.Handlers(cfg), prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Beginning to serve", map[string]interface{}{"listen": cfg.Listen, "metricsPath": cfg.MetricsPath})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

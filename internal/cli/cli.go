package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lablabs/cloudflare-analytics-export/internal/analytics"
	"github.com/lablabs/cloudflare-analytics-export/internal/config"
	"github.com/lablabs/cloudflare-analytics-export/internal/export"
	"github.com/lablabs/cloudflare-analytics-export/internal/handlers"
	"github.com/lablabs/cloudflare-analytics-export/internal/limiter"
	"github.com/lablabs/cloudflare-analytics-export/internal/logging"
	"github.com/lablabs/cloudflare-analytics-export/internal/routes"
)

// Execute initializes and runs the Cobra CLI
func Execute() error {
	_ = godotenv.Load() // .env is optional

	var configFile string

	var cmd = &cobra.Command{
		Use:           "cf-analytics-export",
		Short:         "Cloudflare analytics export API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfigFile(configFile)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return routes.Run(cfg)
		},
	}

	viper.AutomaticEnv()

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "optional config file (yaml, json or toml), watched for log level changes")
	registerFlags(flags)
	_ = viper.BindPFlags(flags)

	cmd.AddCommand(newServeCommand(), newExportCommand(os.Stdout))
	return cmd.Execute()
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the HTTP API (default)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return routes.Run(cfg)
		},
	}
}

func newExportCommand(out io.Writer) *cobra.Command {
	var (
		token    string
		zoneID   string
		from     string
		to       string
		hostname string
		metrics  []string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "run a single export and write it to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			req, err := handlers.NewExportRequest(zoneID, from, to, hostname, metrics)
			if err != nil {
				return err
			}
			if token == "" {
				token = viper.GetString("cf_api_token")
			}
			if token == "" {
				return fmt.Errorf("--token or CF_API_TOKEN is required")
			}

			return runExport(cmd.Context(), cfg, out, token, req, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&token, "token", "", "Cloudflare API token, defaults to CF_API_TOKEN")
	flags.StringVar(&zoneID, "zone", "", "zone id")
	flags.StringVar(&from, "from", "", "start of the range, RFC3339 or YYYY-MM-DD")
	flags.StringVar(&to, "to", "", "end of the range, RFC3339 or YYYY-MM-DD (inclusive day)")
	flags.StringVar(&hostname, "hostname", "", "restrict to one hostname")
	flags.StringSliceVar(&metrics, "metrics", nil, "metric families: traffic, cache")
	flags.StringVar(&format, "format", "json", "json or csv")
	_ = cmd.MarkFlagRequired("zone")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = viper.BindEnv("cf_api_token")

	return cmd
}

func runExport(ctx context.Context, cfg config.Config, out io.Writer, token string, req analytics.ExportRequest, f export.Format) error {
	services, err := routes.NewServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	res, err := services.Exporter.Export(ctx, token, req)
	if err != nil {
		return err
	}
	body, err := export.Render(res, f)
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}

// setup snapshots the configuration and applies the process-wide settings.
func setup() (config.Config, error) {
	cfg := config.FromViper()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := logging.InitializeLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return cfg, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	limiter.Configure(cfg.RateLimitRPS, cfg.RateLimitBurst)
	return cfg, nil
}

func loadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		level := viper.GetString("log_level")
		if err := logging.SetLevel(level); err != nil {
			logging.Warn("Ignoring invalid log_level from config", map[string]interface{}{"file": e.Name, "level": level})
			return
		}
		logging.Info("Config reloaded", map[string]interface{}{"file": e.Name, "log_level": level})
	})
	viper.WatchConfig()
	return nil
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("listen", config.DefaultListen, "listen on addr:port, omit addr to listen on all interfaces")
	viper.BindEnv("listen")
	viper.SetDefault("listen", config.DefaultListen)

	flags.String("metrics_path", config.DefaultMetricsPath, "path for metrics")
	viper.BindEnv("metrics_path")
	viper.SetDefault("metrics_path", config.DefaultMetricsPath)

	flags.String("metrics_denylist", "", "metrics to not expose, comma delimited list")
	viper.BindEnv("metrics_denylist")
	viper.SetDefault("metrics_denylist", "")

	flags.String("log_level", "info", "log level (debug, info, warn, error)")
	viper.BindEnv("log_level")
	viper.SetDefault("log_level", "info")

	flags.String("log_format", "json", "log format, json or text")
	viper.BindEnv("log_format")
	viper.SetDefault("log_format", "json")

	flags.String("cf_api_base_url", config.DefaultAPIBaseURL, "cloudflare REST API base url")
	viper.BindEnv("cf_api_base_url")
	viper.SetDefault("cf_api_base_url", config.DefaultAPIBaseURL)

	flags.String("cf_graphql_endpoint", config.DefaultGraphQLEndpoint, "cloudflare GraphQL analytics endpoint")
	viper.BindEnv("cf_graphql_endpoint")
	viper.SetDefault("cf_graphql_endpoint", config.DefaultGraphQLEndpoint)

	flags.String("cf_oauth_authorize_url", config.DefaultOAuthAuthorizeURL, "cloudflare OAuth authorize url")
	viper.BindEnv("cf_oauth_authorize_url")
	viper.SetDefault("cf_oauth_authorize_url", config.DefaultOAuthAuthorizeURL)

	flags.String("cf_oauth_token_url", config.DefaultOAuthTokenURL, "cloudflare OAuth token url")
	viper.BindEnv("cf_oauth_token_url")
	viper.SetDefault("cf_oauth_token_url", config.DefaultOAuthTokenURL)

	flags.String("cf_client_id", "", "cloudflare OAuth client id")
	viper.BindEnv("cf_client_id")

	flags.String("cf_client_secret", "", "cloudflare OAuth client secret")
	viper.BindEnv("cf_client_secret")

	flags.String("cf_redirect_uri", "", "OAuth redirect uri pointing at /api/oauth/callback")
	viper.BindEnv("cf_redirect_uri")

	flags.String("cf_oauth_scopes", config.DefaultOAuthScopes, "space separated OAuth scopes")
	viper.BindEnv("cf_oauth_scopes")
	viper.SetDefault("cf_oauth_scopes", config.DefaultOAuthScopes)

	flags.String("state_secret", "", "secret sealing the OAuth state, defaults to the client secret")
	viper.BindEnv("state_secret")

	flags.String("default_return_to", config.DefaultReturnTo, "page to return to after OAuth when none is given")
	viper.BindEnv("default_return_to")
	viper.SetDefault("default_return_to", config.DefaultReturnTo)

	flags.String("store_driver", "memory", "credential store: memory, sqlite or postgres")
	viper.BindEnv("store_driver")
	viper.SetDefault("store_driver", "memory")

	flags.String("store_dsn", "", "sqlite file path or postgres connection string")
	viper.BindEnv("store_dsn")

	flags.Duration("max_chunk_span", config.DefaultMaxChunkSpan, "longest range sent in one upstream query")
	viper.BindEnv("max_chunk_span")
	viper.SetDefault("max_chunk_span", config.DefaultMaxChunkSpan)

	flags.Int("cf_query_limit", config.DefaultQueryLimit, "query limit for cloudflare API")
	viper.BindEnv("cf_query_limit")
	viper.SetDefault("cf_query_limit", config.DefaultQueryLimit)

	flags.Int("chunk_workers", config.DefaultChunkWorkers, "chunk queries run concurrently")
	viper.BindEnv("chunk_workers")
	viper.SetDefault("chunk_workers", config.DefaultChunkWorkers)

	flags.Float64("rate_limit_rps", config.DefaultRateLimitRPS, "upstream requests per second")
	viper.BindEnv("rate_limit_rps")
	viper.SetDefault("rate_limit_rps", config.DefaultRateLimitRPS)

	flags.Int("rate_limit_burst", config.DefaultRateLimitBurst, "upstream request burst")
	viper.BindEnv("rate_limit_burst")
	viper.SetDefault("rate_limit_burst", config.DefaultRateLimitBurst)

	flags.Duration("http_timeout", config.DefaultHTTPTimeout, "timeout of one upstream HTTP request")
	viper.BindEnv("http_timeout")
	viper.SetDefault("http_timeout", config.DefaultHTTPTimeout)

	flags.Int("http_retry_max", config.DefaultHTTPRetryMax, "attempts per upstream request on transport failure")
	viper.BindEnv("http_retry_max")
	viper.SetDefault("http_retry_max", config.DefaultHTTPRetryMax)

	flags.String("cors_allowed_origins", "", "allowed CORS origins, comma delimited list, empty allows any")
	viper.BindEnv("cors_allowed_origins")
	viper.SetDefault("cors_allowed_origins", "")
}

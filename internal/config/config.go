package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains runtime configuration values. It is built once from viper and
// passed into component constructors.
type Config struct {
	Listen          string
	MetricsPath     string
	MetricsDenylist []string
	LogLevel        string
	LogFormat       string

	APIBaseURL        string
	GraphQLEndpoint   string
	OAuthAuthorizeURL string
	OAuthTokenURL     string
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	OAuthScopes       string
	StateSecret       string
	DefaultReturnTo   string

	StoreDriver string
	StoreDSN    string

	MaxChunkSpan   time.Duration
	QueryLimit     int
	ChunkWorkers   int
	RateLimitRPS   float64
	RateLimitBurst int
	HTTPTimeout    time.Duration
	HTTPRetryMax   int

	CORSAllowedOrigins []string
}

// FromViper snapshots the current viper state.
func FromViper() Config {
	return Config{
		Listen:             viper.GetString("listen"),
		MetricsPath:        viper.GetString("metrics_path"),
		MetricsDenylist:    splitList(viper.GetString("metrics_denylist")),
		LogLevel:           viper.GetString("log_level"),
		LogFormat:          viper.GetString("log_format"),
		APIBaseURL:         strings.TrimRight(viper.GetString("cf_api_base_url"), "/"),
		GraphQLEndpoint:    viper.GetString("cf_graphql_endpoint"),
		OAuthAuthorizeURL:  viper.GetString("cf_oauth_authorize_url"),
		OAuthTokenURL:      viper.GetString("cf_oauth_token_url"),
		ClientID:           viper.GetString("cf_client_id"),
		ClientSecret:       viper.GetString("cf_client_secret"),
		RedirectURI:        viper.GetString("cf_redirect_uri"),
		OAuthScopes:        viper.GetString("cf_oauth_scopes"),
		StateSecret:        viper.GetString("state_secret"),
		DefaultReturnTo:    viper.GetString("default_return_to"),
		StoreDriver:        strings.ToLower(viper.GetString("store_driver")),
		StoreDSN:           viper.GetString("store_dsn"),
		MaxChunkSpan:       viper.GetDuration("max_chunk_span"),
		QueryLimit:         viper.GetInt("cf_query_limit"),
		ChunkWorkers:       viper.GetInt("chunk_workers"),
		RateLimitRPS:       viper.GetFloat64("rate_limit_rps"),
		RateLimitBurst:     viper.GetInt("rate_limit_burst"),
		HTTPTimeout:        viper.GetDuration("http_timeout"),
		HTTPRetryMax:       viper.GetInt("http_retry_max"),
		CORSAllowedOrigins: splitList(viper.GetString("cors_allowed_origins")),
	}
}

// Validate checks the values the server cannot start without.
func (c Config) Validate() error {
	if c.MaxChunkSpan <= 0 {
		return fmt.Errorf("max_chunk_span must be positive, got %s", c.MaxChunkSpan)
	}
	if c.QueryLimit < 1 || c.QueryLimit > 10000 {
		return fmt.Errorf("cf_query_limit must be between 1 and 10000, got %d", c.QueryLimit)
	}
	if c.ChunkWorkers < 1 {
		return fmt.Errorf("chunk_workers must be at least 1, got %d", c.ChunkWorkers)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate_limit_rps and rate_limit_burst must be positive")
	}
	switch c.StoreDriver {
	case "memory":
	case "sqlite", "postgres":
		if c.StoreDSN == "" {
			return fmt.Errorf("store_dsn is required for store_driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unsupported store_driver %q", c.StoreDriver)
	}
	if !strings.HasPrefix(c.DefaultReturnTo, "/") {
		return fmt.Errorf("default_return_to must be a relative path, got %q", c.DefaultReturnTo)
	}
	return nil
}

// OAuthConfigured reports whether the OAuth client credentials are present.
func (c Config) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// SealingSecret returns the secret used to seal OAuth state tokens.
func (c Config) SealingSecret() string {
	if c.StateSecret != "" {
		return c.StateSecret
	}
	return c.ClientSecret
}

func splitList(v string) []string {
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

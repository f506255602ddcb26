package config

import "time"

// Defaults applied by the CLI when neither a flag, an env variable nor a config file sets a key.
const (
	DefaultListen            = ":8080"
	DefaultMetricsPath       = "/metrics"
	DefaultAPIBaseURL        = "https://api.cloudflare.com/client/v4"
	DefaultGraphQLEndpoint   = "https://api.cloudflare.com/client/v4/graphql"
	DefaultOAuthAuthorizeURL = "https://dash.cloudflare.com/oauth2/authorize"
	DefaultOAuthTokenURL     = "https://api.cloudflare.com/client/v4/oauth2/token"
	DefaultOAuthScopes       = "account:read zone:read analytics:read"
	DefaultReturnTo          = "/dashboard"
	DefaultMaxChunkSpan      = 24 * time.Hour
	DefaultQueryLimit        = 1000
	DefaultChunkWorkers      = 4
	// Cloudflare's API limits: 1200 requests/5min = 4 requests/sec (with burst of 2)
	DefaultRateLimitRPS   = 4.0
	DefaultRateLimitBurst = 2
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultHTTPRetryMax   = 2
)

// Default returns a Config populated with the defaults, backed by an in-memory store.
func Default() Config {
	return Config{
		Listen:            DefaultListen,
		MetricsPath:       DefaultMetricsPath,
		LogLevel:          "info",
		LogFormat:         "json",
		APIBaseURL:        DefaultAPIBaseURL,
		GraphQLEndpoint:   DefaultGraphQLEndpoint,
		OAuthAuthorizeURL: DefaultOAuthAuthorizeURL,
		OAuthTokenURL:     DefaultOAuthTokenURL,
		OAuthScopes:       DefaultOAuthScopes,
		DefaultReturnTo:   DefaultReturnTo,
		StoreDriver:       "memory",
		MaxChunkSpan:      DefaultMaxChunkSpan,
		QueryLimit:        DefaultQueryLimit,
		ChunkWorkers:      DefaultChunkWorkers,
		RateLimitRPS:      DefaultRateLimitRPS,
		RateLimitBurst:    DefaultRateLimitBurst,
		HTTPTimeout:       DefaultHTTPTimeout,
		HTTPRetryMax:      DefaultHTTPRetryMax,
	}
}

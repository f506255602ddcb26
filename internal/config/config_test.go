package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("listen", ":9090")
	viper.Set("metrics_denylist", "a, b,,c ")
	viper.Set("cf_api_base_url", "https://api.example.com/client/v4/")
	viper.Set("store_driver", "SQLite")
	viper.Set("store_dsn", "/tmp/x.db")
	viper.Set("max_chunk_span", "12h")
	viper.Set("cf_query_limit", 500)
	viper.Set("rate_limit_rps", 2.5)

	cfg := FromViper()

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.MetricsDenylist)
	assert.Equal(t, "https://api.example.com/client/v4", cfg.APIBaseURL)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 12*time.Hour, cfg.MaxChunkSpan)
	assert.Equal(t, 500, cfg.QueryLimit)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.0001)
}

func TestValidate_Default(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk span", func(c *Config) { c.MaxChunkSpan = 0 }},
		{"query limit too high", func(c *Config) { c.QueryLimit = 20000 }},
		{"no workers", func(c *Config) { c.ChunkWorkers = 0 }},
		{"no rate", func(c *Config) { c.RateLimitRPS = 0 }},
		{"sqlite without dsn", func(c *Config) { c.StoreDriver = "sqlite" }},
		{"unknown driver", func(c *Config) { c.StoreDriver = "redis" }},
		{"absolute return", func(c *Config) { c.DefaultReturnTo = "https://evil.example" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOAuthConfiguredAndSealingSecret(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.OAuthConfigured())

	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.RedirectURI = "https://app.example/api/oauth/callback"
	assert.True(t, cfg.OAuthConfigured())
	assert.Equal(t, "secret", cfg.SealingSecret())

	cfg.StateSecret = "state"
	assert.Equal(t, "state", cfg.SealingSecret())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		PostgreSQL: PostgreSQLConfig{DSN: "postgres://localhost/dwelligence"},
		Maps:       MapsConfig{APIKey: "maps-key"},
		Completion: CompletionConfig{Provider: "openai"},
		OpenAI:     OpenAIConfig{APIKey: "sk-test"},
		Commute:    CommuteConfig{CacheBackend: "memory"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no database", func(c *Config) { c.PostgreSQL.DSN = "" }, "DATABASE_URL"},
		{"no maps key", func(c *Config) { c.Maps.APIKey = "" }, "GOOGLE_MAPS_API_KEY"},
		{"gemini without key", func(c *Config) { c.Completion.Provider = "gemini" }, "GEMINI_API_KEY"},
		{"claude without key", func(c *Config) { c.Completion.Provider = "claude" }, "ANTHROPIC_API_KEY"},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "llama" }, "unknown COMPLETION_PROVIDER"},
		{"unknown cache", func(c *Config) { c.Commute.CacheBackend = "memcached" }, "unknown COMMUTE_CACHE"},
		{"negative weight", func(c *Config) { c.Ranking.WeightPrice = -1 }, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	c := validConfig()
	c.PostgreSQL.DSN = ""
	c.Maps.APIKey = ""

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GOOGLE_MAPS_API_KEY")
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/dwelligence")
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("COMPLETION_PROVIDER", "Claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("COMMUTE_CACHE_TTL", "2h")
	t.Setenv("RANK_WEIGHT_TIME", "0.8")
	t.Setenv("SEARCH_BOUNDS_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.Completion.Provider)
	assert.Equal(t, 2*time.Hour, cfg.Commute.CacheTTL)
	assert.Equal(t, 0.8, cfg.Ranking.WeightTime)
	assert.Equal(t, 100, cfg.Search.BoundsLimit, "invalid values fall back to the default")
	assert.Equal(t, "postgres://db/dwelligence", cfg.GetPostgreSQLDSN())
}

func TestLoadDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRESQL_URI", "")
	t.Setenv("PG_DSN", "")
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("PG_USER", "app")
	t.Setenv("GOOGLE_MAPS_API_KEY", "")

	cfg, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "host=db.internal port=5432 user=app password= dbname=dwelligence sslmode=disable", cfg.GetPostgreSQLDSN())
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Ranking    RankingConfig
	Logging    LoggingConfig
	Maps       MapsConfig
	Commute    CommuteConfig
	Completion CompletionConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Claude     ClaudeConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, wins over the discrete fields
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	AutoMigrate        bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// SearchConfig holds search-related configuration
type SearchConfig struct {
	DefaultLimit   int
	MaxLimit       int
	CandidateLimit int // listings pulled from the store before ranking
	BoundsLimit    int // viewport cap
}

// RankingConfig holds the deterministic score weights
type RankingConfig struct {
	WeightTime    float64
	WeightPrice   float64
	MaxCandidates int // upper bound on candidates sent to the completion ranker
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// MapsConfig holds Google Maps Platform configuration
type MapsConfig struct {
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables client-side limiting
}

// CommuteConfig holds commute cache configuration
type CommuteConfig struct {
	CacheTTL             time.Duration
	CacheBackend         string // memory | redis
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	DestinationPrecision int
	DefaultMode          string
}

// CompletionConfig selects the text completion backend
type CompletionConfig struct {
	Provider string // openai | gemini | claude
	Timeout  time.Duration
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey          string
	APIBase         string
	ChatModel       string
	ChatTemperature float64
	ChatTopP        float64
	ChatMaxTokens   int
	ChatExtraBody   string // JSON string for extra_body (e.g., {"chat_template_kwargs":{"thinking":true}})
	RateLimit       float64
	Timeout         int
	Enabled         bool
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
}

// ClaudeConfig holds Anthropic Claude configuration
type ClaudeConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Load reads configuration from environment variables and validates it for
// the API server.
func Load() (*Config, error) {
	cfg := read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase is Load for tools that only talk to PostgreSQL.
func LoadDatabase() (*Config, error) {
	cfg := read()
	if err := cfg.validateDatabase(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func read() *Config {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	return &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", ""),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "dwelligence"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			AutoMigrate:        getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Search: SearchConfig{
			DefaultLimit:   getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:       getEnvAsInt("SEARCH_MAX_LIMIT", 100),
			CandidateLimit: getEnvAsInt("SEARCH_CANDIDATE_LIMIT", 200),
			BoundsLimit:    getEnvAsInt("SEARCH_BOUNDS_LIMIT", 100),
		},
		Ranking: RankingConfig{
			WeightTime:    getEnvAsFloat("RANK_WEIGHT_TIME", 0.5),
			WeightPrice:   getEnvAsFloat("RANK_WEIGHT_PRICE", 0.5),
			MaxCandidates: getEnvAsInt("RANK_MAX_CANDIDATES", 50),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Maps: MapsConfig{
			APIKey:    getEnv("GOOGLE_MAPS_API_KEY", ""),
			Timeout:   getEnvAsDuration("MAPS_TIMEOUT", 10*time.Second),
			RateLimit: getEnvAsFloat("MAPS_RATE_LIMIT", 0),
		},
		Commute: CommuteConfig{
			CacheTTL:             getEnvAsDuration("COMMUTE_CACHE_TTL", 24*time.Hour),
			CacheBackend:         getEnv("COMMUTE_CACHE", "memory"),
			RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:        getEnv("REDIS_PASSWORD", ""),
			RedisDB:              getEnvAsInt("REDIS_DB", 0),
			DestinationPrecision: getEnvAsInt("COMMUTE_DESTINATION_PRECISION", 5),
			DefaultMode:          getEnv("COMMUTE_DEFAULT_MODE", "transit"),
		},
		Completion: CompletionConfig{
			Provider: strings.ToLower(getEnv("COMPLETION_PROVIDER", "openai")),
			Timeout:  getEnvAsDuration("COMPLETION_TIMEOUT", 30*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			APIBase:         getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:       getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature: getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.2),
			ChatTopP:        getEnvAsFloat("OPENAI_CHAT_TOP_P", 0.7),
			ChatMaxTokens:   getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 2048),
			ChatExtraBody:   getEnv("OPENAI_CHAT_EXTRA_BODY", ""),
			RateLimit:       getEnvAsFloat("OPENAI_RATE_LIMIT", 5),
			Timeout:         getEnvAsInt("OPENAI_TIMEOUT", 30),
			Enabled:         getEnv("OPENAI_API_KEY", "") != "",
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", getEnv("GOOGLE_GEMINI_API_KEY", "")),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature: getEnvAsFloat("GEMINI_TEMPERATURE", 0.3),
		},
		Claude: ClaudeConfig{
			APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
			Model:       getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
			MaxTokens:   getEnvAsInt("CLAUDE_MAX_TOKENS", 2048),
			Temperature: getEnvAsFloat("CLAUDE_TEMPERATURE", 0.3),
		},
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.validateDatabase(); err != nil {
		errs = append(errs, err)
	}
	if c.Maps.APIKey == "" {
		errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required"))
	}

	switch c.Completion.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when COMPLETION_PROVIDER=openai"))
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when COMPLETION_PROVIDER=gemini"))
		}
	case "claude":
		if c.Claude.APIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when COMPLETION_PROVIDER=claude"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown COMPLETION_PROVIDER %q (expected openai, gemini or claude)", c.Completion.Provider))
	}

	switch c.Commute.CacheBackend {
	case "memory":
	case "redis":
		if c.Commute.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when COMMUTE_CACHE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown COMMUTE_CACHE %q (expected memory or redis)", c.Commute.CacheBackend))
	}

	if c.Ranking.WeightTime < 0 || c.Ranking.WeightPrice < 0 {
		errs = append(errs, errors.New("ranking weights must be non-negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.PostgreSQL.DSN == "" && c.PostgreSQL.Host == "" {
		return errors.New("database connection is not configured (set DATABASE_URL or PG_HOST)")
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Bool("default", defaultValue).Msg("invalid boolean value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration value, using default")
		return defaultValue
	}
	return value
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`

	Mongo      MongoConfig
	Redis      RedisConfig
	OpenRouter OpenRouterConfig

	MatchingCacheTTL  time.Duration `env:"MATCHING_CACHE_TTL, default=60s"`
	AssessmentWorkers int           `env:"ASSESSMENT_WORKERS, default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB,  default=mentalcompass"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type OpenRouterConfig struct {
	APIKey      string        `env:"OPENROUTER_API_KEY"`
	BaseURL     string        `env:"OPENROUTER_BASE_URL, default=https://openrouter.ai/api/v1"`
	Model       string        `env:"OPENROUTER_MODEL"`
	Referer     string        `env:"OPENROUTER_REFERER,  default=http://localhost:3000"`
	CallTimeout time.Duration `env:"AI_CALL_TIMEOUT,     default=30s"`
	// RateLimit is requests per second per client IP on the assistant route.
	RateLimit float64 `env:"AI_RATE_LIMIT, default=1"`
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return process(ctx, envconfig.OsLookuper())
}

func process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.AssessmentWorkers < 1 {
		cfg.AssessmentWorkers = 1
	}
	return &cfg, nil
}

package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryDSN string `env:"SENTRY_DSN"`
	}
	Store struct {
		// Driver selects the document store backend: memory, postgres or mongo.
		Driver string `env:"STORE_DRIVER" env-default:"memory"`
		// Timeout bounds every single store round trip.
		Timeout time.Duration `env:"STORE_TIMEOUT" env-default:"10s"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Mongo struct {
		URI  string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
		Name string `env:"MONGO_NAME" env-default:"cropside"`
	}
	Auth struct {
		JWTSecret string `env:"AUTH_JWT_SECRET"`
	}
	Feed struct {
		DefaultPageSize int           `env:"FEED_DEFAULT_PAGE_SIZE" env-default:"20"`
		MaxPageSize     int           `env:"FEED_MAX_PAGE_SIZE" env-default:"50"`
		SessionIdleTTL  time.Duration `env:"FEED_SESSION_IDLE_TTL" env-default:"30m"`
	}
	Stories struct {
		TTL time.Duration `env:"STORIES_TTL" env-default:"24h"`
	}
	Interactions struct {
		// RatePerMinute and Burst bound how many optimistic toggles a single
		// viewer may start, on top of the per-target in-flight guard.
		RatePerMinute int `env:"INTERACTIONS_RATE_PER_MINUTE" env-default:"60"`
		Burst         int `env:"INTERACTIONS_BURST" env-default:"10"`
	}
}

// PostgresDSN builds the connection string for the postgres store driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.Name, c.Postgres.SslMode,
	)
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name read by Load.
const EnvPrefix = "SOCIAL_"

// Config captures the runtime configuration for the social fabric service.
type Config struct {
	AppPort         int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	MailboxCapacity int `env:"MAILBOX_CAPACITY" envDefault:"1024"`
	EventBacklog    int `env:"EVENT_BACKLOG" envDefault:"1024"`

	// DatabaseURL enables the activity archive when set.
	DatabaseURL  string `env:"DATABASE_URL"`
	MigrationDir string `env:"MIGRATIONS" envDefault:"migrations"`

	NameZone      string        `env:"NAME_ZONE" envDefault:"social"`
	NameCacheSize int           `env:"NAME_CACHE_SIZE" envDefault:"1024"`
	NameCacheTTL  time.Duration `env:"NAME_CACHE_TTL" envDefault:"1m"`

	IngestWorkers int `env:"INGEST_WORKERS" envDefault:"2"`

	ObjectStore ObjectStoreConfig `envPrefix:"OBJECT_STORE_"`
}

// ObjectStoreConfig locates the S3-compatible bucket media assets are
// written to. An empty bucket keeps assets in memory.
type ObjectStoreConfig struct {
	Bucket        string `env:"BUCKET"`
	Endpoint      string `env:"ENDPOINT"`
	Region        string `env:"REGION" envDefault:"us-east-1"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

// Enabled reports whether an object store bucket is configured.
func (c ObjectStoreConfig) Enabled() bool {
	return c.Bucket != ""
}

// ArchiveEnabled reports whether events should be archived to PostgreSQL.
func (c Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from SOCIAL_-prefixed environment variables,
// applying defaults suited to local development.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return fmt.Errorf("config: port %d out of range", c.AppPort)
	}
	if c.MailboxCapacity <= 0 {
		return fmt.Errorf("config: mailbox capacity must be positive")
	}
	if c.EventBacklog <= 0 {
		return fmt.Errorf("config: event backlog must be positive")
	}
	return nil
}

// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store selects the persistence backend.
type Store string

const (
	StorePostgres Store = "postgres"
	StoreMemory   Store = "memory"
)

// Config holds every setting the binary reads.
type Config struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	RedisURL      string `env:"REDIS_URL"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080/public"`
	JWTSecret     string `env:"JWT_SECRET"`

	ApprovalLinkTTL   time.Duration `env:"APPROVAL_LINK_TTL" envDefault:"168h"`
	AcceptanceLinkTTL time.Duration `env:"ACCEPTANCE_LINK_TTL" envDefault:"168h"`
	PlanCacheTTL      time.Duration `env:"PLAN_CACHE_TTL" envDefault:"5m"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogEncoding string `env:"LOG_ENCODING" envDefault:"json"`

	Store Store `env:"STORE" envDefault:"postgres"`
}

// DefaultEnvFiles are loaded, when present, before the environment is parsed.
var DefaultEnvFiles = []string{".env", ".env.local"}

// LoadEnv loads the env files that exist and reports how many were read.
// Variables already set in the process win over file values.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads the env files and parses the environment into a Config.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	if _, err := LoadEnv(files); err != nil {
		return Config{}, fmt.Errorf("config: load env files: %w", err)
	}
	return Parse()
}

// Parse reads the current process environment only.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.Store = Store(strings.ToLower(string(cfg.Store)))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be expressed as defaults.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE is postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	}
	if c.ApprovalLinkTTL <= 0 || c.AcceptanceLinkTTL <= 0 {
		errs = append(errs, errors.New("link TTLs must be positive"))
	}
	if c.DBMaxConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be non-negative, got %d", c.DBMaxConns))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

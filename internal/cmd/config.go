package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/internal/logging"
	"github.com/c2tech/dashauth/session"
	"github.com/c2tech/dashauth/store/nocodb"
)

// Store drivers accepted in the store section.
const (
	StoreMemory   = "memory"
	StoreNocoDB   = "nocodb"
	StorePostgres = "postgres"
)

// FileConfig is the on-disk configuration of the dashauth binary.
type FileConfig struct {
	Auth   dashauth.Config `yaml:"auth"`
	Server ServerConfig    `yaml:"server"`
	Store  StoreConfig     `yaml:"store"`
	Redis  RedisConfig     `yaml:"redis"`
	Log    logging.Config  `yaml:"log"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	Metrics         bool          `yaml:"metrics"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	NocoDB   nocodb.Config  `yaml:"nocodb"`
	Postgres PostgresConfig `yaml:"postgres"`
	// Users seeds the memory driver.
	Users []SeedUser `yaml:"users"`
}

type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// SeedUser is a memory-driver account. PasswordHash comes from
// `dashauth hash-password`.
type SeedUser struct {
	ID                 string      `yaml:"id"`
	Email              string      `yaml:"email"`
	Name               string      `yaml:"name"`
	Role               string      `yaml:"role"`
	PasswordHash       string      `yaml:"password_hash"`
	Inactive           bool        `yaml:"inactive"`
	ForcePasswordReset bool        `yaml:"force_password_reset"`
	Grants             []SeedGrant `yaml:"grants"`
}

type SeedGrant struct {
	Company      string   `yaml:"company"`
	Capabilities []string `yaml:"capabilities"`
}

// RedisConfig is only used when auth.rate_limit.backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Auth: dashauth.DefaultConfig(),
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{Driver: StoreMemory},
		Log:   logging.Config{Level: "info", Format: "json"},
	}
}

// loadConfig reads path over the defaults, then applies environment
// overrides. An empty path uses defaults and environment only.
func loadConfig(path string, getenv func(string) string) (FileConfig, error) {
	cfg := defaultFileConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	switch cfg.Store.Driver {
	case StoreMemory, StoreNocoDB, StorePostgres:
	default:
		return cfg, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Auth.RateLimit.Backend == dashauth.RateLimitRedis && cfg.Redis.Addr == "" {
		return cfg, errors.New("redis rate-limit backend requires redis.addr")
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	setString("DASHAUTH_SESSION_SECRET", &cfg.Auth.Session.Secret)
	setString("DASHAUTH_BREAK_GLASS_IDENTIFIER", &cfg.Auth.BreakGlass.Identifier)
	setString("DASHAUTH_BREAK_GLASS_SECRET", &cfg.Auth.BreakGlass.Secret)
	setString("DASHAUTH_NOCODB_TOKEN", &cfg.Store.NocoDB.Token)
	setString("DASHAUTH_POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	setString("DASHAUTH_REDIS_ADDR", &cfg.Redis.Addr)

	if err := setBool("DASHAUTH_BREAK_GLASS_ENABLED", &cfg.Auth.BreakGlass.Enabled); err != nil {
		return err
	}
	if err := setBool("DASHAUTH_PRODUCTION", &cfg.Auth.Security.ProductionMode); err != nil {
		return err
	}

	if v := strings.ToLower(strings.TrimSpace(getenv("DASHAUTH_COOKIE_SECURE"))); v != "" {
		switch v {
		case "true", "1":
			cfg.Auth.Cookie.SecureMode = session.SecureAlways
		case "false", "0":
			cfg.Auth.Cookie.SecureMode = session.SecureNever
		default:
			mode := session.SecureMode(v)
			if !mode.Valid() {
				return fmt.Errorf("DASHAUTH_COOKIE_SECURE: unknown mode %q", v)
			}
			cfg.Auth.Cookie.SecureMode = mode
		}
	}
	return nil
}

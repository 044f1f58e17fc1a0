package dashauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/c2tech/dashauth/session"
)

// Config is the complete engine configuration. It is validated once by
// [Builder.Build] and never re-read afterwards.
type Config struct {
	Session    SessionConfig    `yaml:"session"`
	Cookie     CookieConfig     `yaml:"cookie"`
	BreakGlass BreakGlassConfig `yaml:"break_glass"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Store      StoreConfig      `yaml:"store"`
	Audit      AuditConfig      `yaml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Security   SecurityConfig   `yaml:"security"`
	Password   PasswordConfig   `yaml:"password"`
	// Companies is the universe of known company identifiers. Admin and
	// break-glass sessions are granted all of them.
	Companies []string `yaml:"companies"`
}

/*
====================================
SESSION / COOKIE
====================================
*/

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// Secret signs session tokens. When empty outside production a
	// fallback is derived from the break-glass secret.
	Secret string `yaml:"secret"`
}

type CookieConfig struct {
	Name                string             `yaml:"name"`
	Path                string             `yaml:"path"`
	SameSite            string             `yaml:"same_site"`
	SecureMode          session.SecureMode `yaml:"secure"`
	TrustForwardedProto bool               `yaml:"trust_forwarded_proto"`
}

/*
====================================
BREAK-GLASS
====================================
*/

type BreakGlassConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Identifier string `yaml:"identifier"`
	Secret     string `yaml:"secret"`
}

/*
====================================
RATE LIMIT
====================================
*/

// RateLimitBackend selects where login attempt counters live.
type RateLimitBackend string

const (
	RateLimitMemory RateLimitBackend = "memory"
	RateLimitRedis  RateLimitBackend = "redis"
)

type RateLimitConfig struct {
	Backend          RateLimitBackend `yaml:"backend"`
	LoginMaxAttempts int              `yaml:"login_max_attempts"`
	LoginWindow      time.Duration    `yaml:"login_window"`
	SweepInterval    time.Duration    `yaml:"sweep_interval"`
	RedisPrefix      string           `yaml:"redis_prefix"`
}

/*
====================================
STORE / AUDIT / METRICS
====================================
*/

type StoreConfig struct {
	// LookupTimeout bounds every user and permission lookup. A timeout is
	// treated as a lookup error.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

type AuditConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BufferSize  int           `yaml:"buffer_size"`
	DropIfFull  bool          `yaml:"drop_if_full"`
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"latency_histograms"`
}

type SecurityConfig struct {
	ProductionMode bool `yaml:"production"`
}

type PasswordConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// MinProductionSecretBytes is the shortest signing secret accepted in
// production mode.
const MinProductionSecretBytes = 32

const (
	maxIdentifierBytes = 254
	maxSecretBytes     = 128
)

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL: 12 * time.Hour,
		},
		Cookie: CookieConfig{
			Name:                session.DefaultCookieName,
			Path:                "/",
			SameSite:            "lax",
			SecureMode:          session.SecureAuto,
			TrustForwardedProto: true,
		},
		RateLimit: RateLimitConfig{
			Backend:          RateLimitMemory,
			LoginMaxAttempts: 10,
			LoginWindow:      10 * time.Minute,
			SweepInterval:    5 * time.Minute,
			RedisPrefix:      "dashauth:rl:",
		},
		Store: StoreConfig{
			LookupTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Password: PasswordConfig{
			BcryptCost: 12,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Companies = slices.Clone(cfg.Companies)
	return out
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return configError("Session TTL must be > 0")
	}

	if c.Security.ProductionMode {
		if c.Session.Secret == "" {
			return configError("Session Secret is required in production mode")
		}
		if len(c.Session.Secret) < MinProductionSecretBytes {
			return configError("Session Secret must be at least %d bytes in production mode", MinProductionSecretBytes)
		}
		if c.Cookie.SecureMode == session.SecureNever {
			return configError("Cookie secure mode 'never' is not allowed in production mode")
		}
	}

	if c.Cookie.Name == "" {
		return configError("Cookie Name must not be empty")
	}
	if !c.Cookie.SecureMode.Valid() {
		return configError("Cookie secure mode must be auto, always or never")
	}
	sameSite, ok := parseSameSite(c.Cookie.SameSite)
	if !ok {
		return configError("Cookie SameSite must be lax, strict or none")
	}
	if sameSite == http.SameSiteNoneMode && c.Cookie.SecureMode != session.SecureAlways {
		return configError("Cookie SameSite none requires secure mode 'always'")
	}

	if c.BreakGlass.Enabled {
		if strings.TrimSpace(c.BreakGlass.Identifier) == "" || c.BreakGlass.Secret == "" {
			return configError("BreakGlass requires Identifier and Secret when enabled")
		}
		if len(c.BreakGlass.Identifier) > maxIdentifierBytes || len(c.BreakGlass.Secret) > maxSecretBytes {
			return configError("BreakGlass credentials exceed login field limits")
		}
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory:
		if c.RateLimit.SweepInterval <= 0 {
			return configError("RateLimit SweepInterval must be > 0")
		}
	case RateLimitRedis:
	default:
		return configError("RateLimit Backend must be memory or redis")
	}
	if c.RateLimit.LoginMaxAttempts <= 0 {
		return configError("RateLimit LoginMaxAttempts must be > 0")
	}
	if c.RateLimit.LoginWindow <= 0 {
		return configError("RateLimit LoginWindow must be > 0")
	}

	if c.Store.LookupTimeout <= 0 {
		return configError("Store LookupTimeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when enabled")
	}

	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return configError("Password BcryptCost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}

	seen := make(map[string]struct{}, len(c.Companies))
	for _, company := range c.Companies {
		if strings.TrimSpace(company) == "" {
			return configError("Companies must not contain empty identifiers")
		}
		if _, dup := seen[company]; dup {
			return configError("Companies contains duplicate %q", company)
		}
		seen[company] = struct{}{}
	}

	return nil
}

func parseSameSite(s string) (http.SameSite, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}

func (c *Config) cookiePolicy() session.CookiePolicy {
	sameSite, _ := parseSameSite(c.Cookie.SameSite)
	return session.CookiePolicy{
		Name:                c.Cookie.Name,
		Path:                c.Cookie.Path,
		SameSite:            sameSite,
		TTL:                 c.Session.TTL,
		Secure:              c.Cookie.SecureMode,
		TrustForwardedProto: c.Cookie.TrustForwardedProto,
		ProductionMode:      c.Security.ProductionMode,
	}
}

const fallbackSecretContext = "dashauth/session-fallback/v1"

// signingSecret returns the session signing secret and whether it was
// derived from the break-glass secret. Validate must have passed.
func (c *Config) signingSecret() ([]byte, bool, error) {
	if c.Session.Secret != "" {
		return []byte(c.Session.Secret), false, nil
	}
	if c.Security.ProductionMode {
		return nil, false, configError("Session Secret is required in production mode")
	}
	if c.BreakGlass.Secret == "" {
		return nil, false, configError("Session Secret is unset and no break-glass secret is available to derive one")
	}

	mac := hmac.New(sha256.New, []byte(fallbackSecretContext))
	mac.Write([]byte(c.BreakGlass.Secret))
	return mac.Sum(nil), true, nil
}

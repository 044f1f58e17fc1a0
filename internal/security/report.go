package security

import "time"

// Report summarizes the security-relevant posture of a running engine.
type Report struct {
	ProductionMode     bool          `yaml:"production"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	DegradedSecret     bool          `yaml:"degraded_secret"`
	CookieName         string        `yaml:"cookie_name"`
	CookieSecureMode   string        `yaml:"cookie_secure"`
	CookieSameSite     string        `yaml:"cookie_same_site"`
	BreakGlassEnabled  bool          `yaml:"break_glass_enabled"`
	RateLimitBackend   string        `yaml:"rate_limit_backend"`
	LoginMaxAttempts   int           `yaml:"login_max_attempts"`
	LoginWindow        time.Duration `yaml:"login_window"`
	RateLimitingActive bool          `yaml:"rate_limiting_active"`
	LookupTimeout      time.Duration `yaml:"lookup_timeout"`
	AuditEnabled       bool          `yaml:"audit_enabled"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	KnownCompanies     int           `yaml:"known_companies"`
	// Warnings lists posture problems an operator should act on.
	Warnings []string `yaml:"warnings"`
}

type ReportInput struct {
	ProductionMode    bool
	SessionTTL        time.Duration
	DegradedSecret    bool
	CookieName        string
	CookieSecureMode  string
	CookieSameSite    string
	BreakGlassEnabled bool
	RateLimitBackend  string
	LoginMaxAttempts  int
	LoginWindow       time.Duration
	LookupTimeout     time.Duration
	AuditEnabled      bool
	BcryptCost        int
	KnownCompanies    int
}

func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:     input.ProductionMode,
		SessionTTL:         input.SessionTTL,
		DegradedSecret:     input.DegradedSecret,
		CookieName:         input.CookieName,
		CookieSecureMode:   input.CookieSecureMode,
		CookieSameSite:     input.CookieSameSite,
		BreakGlassEnabled:  input.BreakGlassEnabled,
		RateLimitBackend:   input.RateLimitBackend,
		LoginMaxAttempts:   input.LoginMaxAttempts,
		LoginWindow:        input.LoginWindow,
		RateLimitingActive: input.LoginMaxAttempts > 0 && input.LoginWindow > 0,
		LookupTimeout:      input.LookupTimeout,
		AuditEnabled:       input.AuditEnabled,
		BcryptCost:         input.BcryptCost,
		KnownCompanies:     input.KnownCompanies,
	}

	if input.DegradedSecret {
		r.Warnings = append(r.Warnings, "session secret derived from break-glass secret")
	}
	if input.BreakGlassEnabled {
		r.Warnings = append(r.Warnings, "break-glass login enabled")
	}
	if input.CookieSecureMode == "never" {
		r.Warnings = append(r.Warnings, "session cookie never marked Secure")
	}
	if input.RateLimitBackend == "memory" {
		r.Warnings = append(r.Warnings, "login rate limits are per-process")
	}
	if !input.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit disabled")
	}
	if input.SessionTTL > 24*time.Hour {
		r.Warnings = append(r.Warnings, "session TTL exceeds 24h")
	}

	return r
}

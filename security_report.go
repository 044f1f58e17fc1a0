package dashauth

import "github.com/c2tech/dashauth/internal/security"

// SecurityReport summarizes the engine's effective security posture.
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:    cfg.Security.ProductionMode,
		SessionTTL:        cfg.Session.TTL,
		DegradedSecret:    e.degradedSecret,
		CookieName:        cfg.Cookie.Name,
		CookieSecureMode:  string(cfg.Cookie.SecureMode),
		CookieSameSite:    cfg.Cookie.SameSite,
		BreakGlassEnabled: cfg.BreakGlass.Enabled,
		RateLimitBackend:  string(cfg.RateLimit.Backend),
		LoginMaxAttempts:  cfg.RateLimit.LoginMaxAttempts,
		LoginWindow:       cfg.RateLimit.LoginWindow,
		LookupTimeout:     cfg.Store.LookupTimeout,
		AuditEnabled:      cfg.Audit.Enabled,
		BcryptCost:        cfg.Password.BcryptCost,
		KnownCompanies:    len(cfg.Companies),
	})
}

package dashauth

import (
	"context"
	"time"

	"github.com/c2tech/dashauth/internal/flows"
	"github.com/c2tech/dashauth/password"
)

// Login runs the credential flow for req. Client IP and User-Agent are
// read from ctx ([WithClientIP], [WithUserAgent]).
//
// Every failure other than rate limiting returns ErrInvalidCredentials.
// Rate limiting returns a [*RateLimitError].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	res, err := flows.RunLogin(ctx, flows.LoginInput{
		Identifier: req.Identifier,
		Secret:     req.Secret,
		ClientIP:   ClientIPFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
	}, e.loginDeps)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:              res.Token,
		Session:            res.Payload,
		BreakGlass:         res.BreakGlass,
		ForcePasswordReset: res.ForcePasswordReset,
	}, nil
}

func (e *Engine) newLoginDeps() flows.LoginDeps {
	cfg := e.config
	return flows.LoginDeps{
		BreakGlassEnabled:    cfg.BreakGlass.Enabled,
		BreakGlassIdentifier: cfg.BreakGlass.Identifier,
		BreakGlassSecret:     cfg.BreakGlass.Secret,
		MaxAttempts:          cfg.RateLimit.LoginMaxAttempts,
		Window:               cfg.RateLimit.LoginWindow,
		Now:                  e.now,

		Validate:  e.validateLogin,
		CheckRate: e.CheckRateLimit,
		FindUser: func(ctx context.Context, identifier string) (*flows.LoginUserRecord, error) {
			u, err := e.findUserByIdentifier(ctx, identifier)
			if err != nil || u == nil {
				return nil, err
			}
			return &flows.LoginUserRecord{
				UserID:             u.ID,
				Identifier:         u.Identifier,
				DisplayName:        u.DisplayName,
				Role:               u.Role,
				Active:             u.Active,
				PasswordHash:       u.PasswordHash,
				ForcePasswordReset: u.ForcePasswordReset,
			}, nil
		},
		Verify:       password.Verify,
		Permissions:  e.fetchPermissions,
		AllCompanies: e.Companies,
		Issue:        e.codec.Issue,

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		Audit:     e.emitLoginAudit,
		Warn:      e.warn,

		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			BreakGlass:       int(MetricBreakGlassLogin),
			SessionIssued:    int(MetricSessionIssued),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
			BreakGlass:       auditEventLoginBreakGlass,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			StoreUnavailable:   ErrStoreUnavailable,
			SessionIssueFailed: ErrSessionIssueFailed,
			RateLimited: func(resetAt time.Time) error {
				return &RateLimitError{ResetAt: resetAt}
			},
		},
	}
}

// validateLogin enforces presence and length limits, and an email-shaped
// identifier except for the configured break-glass identifier.
func (e *Engine) validateLogin(identifier, secret string, breakGlass bool) error {
	if err := e.validate.Struct(LoginRequest{Identifier: identifier, Secret: secret}); err != nil {
		return err
	}
	if breakGlass {
		return nil
	}
	return e.validate.Var(identifier, "email")
}

package flows

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/c2tech/dashauth/internal/rate"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/session"
)

// BreakGlassName is the display name stamped on break-glass sessions.
const BreakGlassName = "Admin (Break-glass)"

// LoginInput is the submitted login attempt plus request metadata.
type LoginInput struct {
	Identifier string
	Secret     string
	ClientIP   string
	UserAgent  string
}

// LoginUserRecord is the flow-local view of a stored user.
type LoginUserRecord struct {
	UserID             string
	Identifier         string
	DisplayName        string
	Role               string
	Active             bool
	PasswordHash       string
	ForcePasswordReset bool
}

// LoginResult is returned for every successful login.
type LoginResult struct {
	Token              string
	Payload            session.Payload
	BreakGlass         bool
	ForcePasswordReset bool
}

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	BreakGlass       int
	SessionIssued    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	BreakGlass       string
}

// LoginErrors carries host-level sentinel errors.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	StoreUnavailable   error
	SessionIssueFailed error
	// RateLimited builds the host error for a denied attempt.
	RateLimited func(resetAt time.Time) error
}

// LoginAudit is the subset of an audit event the flow decides.
type LoginAudit struct {
	EventType  string
	Success    bool
	UserID     string
	Identifier string
	IP         string
	UserAgent  string
	Err        error
	Metadata   map[string]string
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	BreakGlassEnabled    bool
	BreakGlassIdentifier string
	BreakGlassSecret     string
	MaxAttempts          int
	Window               time.Duration
	Now                  func() time.Time

	// Validate reports malformed input. breakGlass is true when the
	// identifier matches the enabled break-glass identifier.
	Validate     func(identifier, secret string, breakGlass bool) error
	CheckRate    func(ctx context.Context, key string, max int, window time.Duration) (rate.Result, error)
	FindUser     func(ctx context.Context, identifier string) (*LoginUserRecord, error)
	Verify       func(secret, hash string) (bool, error)
	Permissions  func(ctx context.Context, userID string) ([]permission.Record, error)
	AllCompanies func() []string
	Issue        func(session.Claims) (string, session.Payload, error)

	MetricInc func(int)
	Audit     func(context.Context, LoginAudit)
	Warn      func(msg string, err error, fields map[string]any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes the login flow. The order of gates is fixed: input
// validation, rate limit, break-glass, user lookup, credential check,
// permission fetch, issuance. Every outcome emits one audit record.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Audit == nil {
		deps.Audit = func(context.Context, LoginAudit) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, error, map[string]any) {}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Validate == nil ||
		deps.CheckRate == nil ||
		deps.FindUser == nil ||
		deps.Verify == nil ||
		deps.Issue == nil ||
		deps.Errors.RateLimited == nil {
		return nil, deps.Errors.EngineNotReady
	}

	identifier := strings.TrimSpace(in.Identifier)
	audit := func(eventType string, success bool, userID string, err error, meta map[string]string) {
		deps.Audit(ctx, LoginAudit{
			EventType:  eventType,
			Success:    success,
			UserID:     userID,
			Identifier: identifier,
			IP:         in.ClientIP,
			UserAgent:  in.UserAgent,
			Err:        err,
			Metadata:   meta,
		})
	}
	fail := func(userID, reason string) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		audit(deps.Events.LoginFailure, false, userID, deps.Errors.InvalidCredentials, map[string]string{"reason": reason})
		return nil, deps.Errors.InvalidCredentials
	}

	breakGlassCandidate := deps.BreakGlassEnabled &&
		deps.BreakGlassIdentifier != "" &&
		constantTimeEqualFold(identifier, deps.BreakGlassIdentifier)

	if err := deps.Validate(identifier, in.Secret, breakGlassCandidate); err != nil {
		return fail("", "invalid_input")
	}

	res, err := deps.CheckRate(ctx, rate.LoginKey(in.ClientIP, identifier), deps.MaxAttempts, deps.Window)
	if err != nil {
		// Limiter errors count as denials.
		deps.Warn("login rate limiter unavailable", err, map[string]any{"ip": in.ClientIP})
		res = rate.Result{Allowed: false, ResetAt: deps.Now().Add(deps.Window)}
	}
	if !res.Allowed {
		rlErr := deps.Errors.RateLimited(res.ResetAt)
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		audit(deps.Events.LoginRateLimited, false, "", rlErr, nil)
		return nil, rlErr
	}

	if breakGlassCandidate && deps.BreakGlassSecret != "" &&
		subtle.ConstantTimeCompare([]byte(in.Secret), []byte(deps.BreakGlassSecret)) == 1 {
		var companies []string
		if deps.AllCompanies != nil {
			companies = deps.AllCompanies()
		}
		token, payload, err := deps.Issue(session.Claims{
			Subject:   session.BreakGlassSubject,
			Email:     identifier,
			Name:      BreakGlassName,
			Role:      permission.RoleAdmin,
			Companies: companies,
		})
		if err != nil {
			deps.Warn("break-glass session issue failed", err, nil)
			return nil, deps.Errors.SessionIssueFailed
		}
		deps.MetricInc(deps.Metrics.BreakGlass)
		deps.MetricInc(deps.Metrics.SessionIssued)
		audit(deps.Events.BreakGlass, true, session.BreakGlassSubject, nil, nil)
		return &LoginResult{Token: token, Payload: payload, BreakGlass: true}, nil
	}

	user, err := deps.FindUser(ctx, identifier)
	if err != nil {
		deps.Warn("user lookup failed", err, map[string]any{"identifier": identifier})
		deps.MetricInc(deps.Metrics.LoginFailure)
		audit(deps.Events.LoginFailure, false, "", deps.Errors.StoreUnavailable, map[string]string{"reason": "store_unavailable"})
		return nil, deps.Errors.InvalidCredentials
	}
	if user == nil {
		return fail("", "unknown_user")
	}
	if !user.Active {
		return fail(user.UserID, "inactive")
	}

	ok, err := deps.Verify(in.Secret, user.PasswordHash)
	if err != nil {
		deps.Warn("stored credential hash unusable", err, map[string]any{"user_id": user.UserID})
		return fail(user.UserID, "bad_hash")
	}
	if !ok {
		return fail(user.UserID, "bad_secret")
	}

	role, valid := permission.ParseRole(user.Role)
	if !valid {
		deps.Warn("stored user has unknown role", nil, map[string]any{"user_id": user.UserID, "role": user.Role})
		return fail(user.UserID, "unknown_role")
	}

	companies := []string{}
	if deps.Permissions != nil {
		records, err := deps.Permissions(ctx, user.UserID)
		if err != nil {
			deps.Warn("permission lookup failed during login; issuing session without companies", err, map[string]any{"user_id": user.UserID})
		} else {
			companies = permission.Companies(records, permission.AnyCapability)
		}
	}

	email := user.Identifier
	if email == "" {
		email = identifier
	}
	token, payload, err := deps.Issue(session.Claims{
		Subject:   user.UserID,
		Email:     email,
		Name:      user.DisplayName,
		Role:      role,
		Companies: companies,
	})
	if err != nil {
		deps.Warn("session issue failed", err, map[string]any{"user_id": user.UserID})
		deps.MetricInc(deps.Metrics.LoginFailure)
		audit(deps.Events.LoginFailure, false, user.UserID, deps.Errors.SessionIssueFailed, nil)
		return nil, deps.Errors.SessionIssueFailed
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.MetricInc(deps.Metrics.SessionIssued)
	audit(deps.Events.LoginSuccess, true, user.UserID, nil, nil)

	return &LoginResult{
		Token:              token,
		Payload:            payload,
		ForcePasswordReset: user.ForcePasswordReset,
	}, nil
}

// constantTimeEqualFold compares case-insensitively without an early exit
// on the first differing byte.
func constantTimeEqualFold(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}

package dashauth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	internalaudit "github.com/c2tech/dashauth/internal/audit"
	"github.com/c2tech/dashauth/internal/flows"
	"github.com/c2tech/dashauth/internal/logging"
	"github.com/c2tech/dashauth/internal/rate"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/session"
)

// Engine issues and verifies sessions, gates logins, and answers
// authorization questions. It is safe for concurrent use once built.
type Engine struct {
	config         Config
	codec          *session.Codec
	cookies        session.CookiePolicy
	limiter        rate.Limiter
	sweeper        *rate.Sweeper
	users          UserStore
	permissions    PermissionStore
	validate       *validator.Validate
	audit          *internalaudit.Dispatcher
	metrics        *Metrics
	log            logrus.FieldLogger
	now            func() time.Time
	degradedSecret bool

	loginDeps flows.LoginDeps
	authzDeps flows.AuthorizeDeps
}

// Close stops the rate-limit sweeper and drains pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Companies returns the configured universe of company identifiers.
func (e *Engine) Companies() []string {
	if e == nil {
		return nil
	}
	return slices.Clone(e.config.Companies)
}

// IssueSession stamps and signs claims.
func (e *Engine) IssueSession(claims Claims) (string, error) {
	if e == nil || e.codec == nil {
		return "", ErrEngineNotReady
	}
	token, _, err := e.codec.Issue(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionIssueFailed, err)
	}
	e.metricInc(MetricSessionIssued)
	return token, nil
}

// VerifySession returns the session carried by token. Absent, malformed,
// forged and expired tokens are indistinguishable. Break-glass sessions
// are rejected while break-glass login is disabled.
func (e *Engine) VerifySession(token string) (*Session, bool) {
	if e == nil || e.codec == nil || token == "" {
		return nil, false
	}
	s, ok := e.codec.Verify(token)
	if ok && s.IsBreakGlass() && !e.config.BreakGlass.Enabled {
		ok = false
	}
	if !ok {
		e.metricInc(MetricSessionRejected)
		return nil, false
	}
	return s, true
}

// RequireAuth returns the verified session on r, or nil. It never writes
// a response; callers choose between a redirect and a JSON 401.
func (e *Engine) RequireAuth(r *http.Request) *Session {
	if e == nil || r == nil {
		return nil
	}
	s, ok := e.VerifySession(e.cookies.Read(r))
	if !ok {
		return nil
	}
	return s
}

// SessionCookie returns the cookie that carries token in a response to r.
// r may be nil.
func (e *Engine) SessionCookie(r *http.Request, token string) *http.Cookie {
	return e.cookies.Cookie(r, token)
}

// ClearSessionCookie returns a cookie that expires the session cookie.
func (e *Engine) ClearSessionCookie(r *http.Request) *http.Cookie {
	return e.cookies.Clear(r)
}

func (e *Engine) CookieName() string {
	return e.config.Cookie.Name
}

// CheckRateLimit counts one attempt against key.
func (e *Engine) CheckRateLimit(ctx context.Context, key string, max int, window time.Duration) (RateLimitResult, error) {
	if e == nil || e.limiter == nil {
		return RateLimitResult{}, ErrEngineNotReady
	}
	res, err := e.limiter.Check(ctx, key, max, window)
	if err != nil {
		return RateLimitResult{}, err
	}
	if !res.Allowed {
		e.metricInc(MetricRateLimitHit)
	}
	return res, nil
}

// Logout records the end of s. Tokens are stateless, so the caller must
// also send [Engine.ClearSessionCookie].
func (e *Engine) Logout(ctx context.Context, s *Session) {
	if e == nil {
		return
	}
	e.metricInc(MetricLogout)
	rec := auditRecord{eventType: auditEventLogout, success: s != nil, resource: "auth"}
	if s != nil {
		rec.userID = s.Subject
		rec.identifier = s.Email
	} else {
		rec.err = ErrUnauthorized
	}
	e.emitAudit(ctx, rec)
}

// ConfirmActive re-reads the account behind s and reports whether it still
// exists and is active. Break-glass sessions have no account and confirm
// only while break-glass login is enabled. Lookup failures report false
// with ErrStoreUnavailable.
func (e *Engine) ConfirmActive(ctx context.Context, s *Session) (bool, error) {
	if e == nil || e.users == nil {
		return false, ErrEngineNotReady
	}
	if s == nil {
		return false, nil
	}
	if s.IsBreakGlass() {
		return e.config.BreakGlass.Enabled && s.IsAdmin(), nil
	}

	user, err := e.findUserByID(ctx, s.Subject)
	if err != nil {
		e.warn("user re-confirmation failed", err, map[string]any{"user_id": s.Subject})
		return false, err
	}
	return user != nil && user.Active, nil
}

// UserAccess returns a user and their permission records. It returns
// (nil, nil, nil) when the user does not exist.
func (e *Engine) UserAccess(ctx context.Context, userID string) (*UserRecord, []permission.Record, error) {
	if e == nil || e.users == nil || e.permissions == nil {
		return nil, nil, ErrEngineNotReady
	}
	user, err := e.findUserByID(ctx, userID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	records, err := e.fetchPermissions(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, records, nil
}

func (e *Engine) findUserByID(ctx context.Context, id string) (*UserRecord, error) {
	user, err := callWithTimeout(ctx, e.config.Store.LookupTimeout, func(ctx context.Context) (*UserRecord, error) {
		return e.users.FindUserByID(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func (e *Engine) findUserByIdentifier(ctx context.Context, identifier string) (*UserRecord, error) {
	user, err := callWithTimeout(ctx, e.config.Store.LookupTimeout, func(ctx context.Context) (*UserRecord, error) {
		return e.users.FindUserByIdentifier(ctx, identifier)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func (e *Engine) fetchPermissions(ctx context.Context, userID string) ([]permission.Record, error) {
	records, err := callWithTimeout(ctx, e.config.Store.LookupTimeout, func(ctx context.Context) ([]permission.Record, error) {
		return e.permissions.Permissions(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// callWithTimeout bounds fn by d even when fn ignores ctx.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (e *Engine) warn(msg string, err error, fields map[string]any) {
	entry := e.log.WithFields(logrus.Fields(logging.Redact(fields)))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}

package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c2tech/dashauth/internal/rate"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/session"
)

var (
	errNotReady    = errors.New("not ready")
	errInvalid     = errors.New("invalid credentials")
	errUnavailable = errors.New("store unavailable")
	errIssue       = errors.New("issue failed")
	errLimited     = errors.New("rate limited")
)

type loginHarness struct {
	limiter     *rate.Memory
	users       map[string]*LoginUserRecord
	findErr     error
	permErr     error
	records     []permission.Record
	lookups     int
	verifies    int
	audits      []LoginAudit
	metricCount map[int]int
}

func newLoginHarness() *loginHarness {
	return &loginHarness{
		limiter: rate.NewMemory(nil),
		users: map[string]*LoginUserRecord{
			"ana@example.com": {
				UserID: "7", Identifier: "ana@example.com", DisplayName: "Ana",
				Role: "manager", Active: true, PasswordHash: "hash:correct-password",
			},
			"off@example.com": {
				UserID: "8", Identifier: "off@example.com", Role: "viewer",
				Active: false, PasswordHash: "hash:correct-password",
			},
		},
		records: []permission.Record{
			{UserID: "7", Company: "acme", Mask: permission.MaskOf(permission.ViewInbox)},
			{UserID: "7", Company: "globex", Mask: permission.MaskOf(permission.ViewDashboard)},
		},
		metricCount: map[int]int{},
	}
}

func (h *loginHarness) deps() LoginDeps {
	codec, _ := session.NewCodec([]byte("test-secret"), time.Hour)
	return LoginDeps{
		BreakGlassEnabled:    true,
		BreakGlassIdentifier: "ops@example.com",
		BreakGlassSecret:     "glass-secret",
		MaxAttempts:          10,
		Window:               10 * time.Minute,
		Validate: func(identifier, secret string, breakGlass bool) error {
			if identifier == "" || secret == "" {
				return errors.New("required")
			}
			if !breakGlass && !strings.Contains(identifier, "@") {
				return errors.New("email")
			}
			return nil
		},
		CheckRate: h.limiter.Check,
		FindUser: func(_ context.Context, identifier string) (*LoginUserRecord, error) {
			h.lookups++
			if h.findErr != nil {
				return nil, h.findErr
			}
			return h.users[strings.ToLower(identifier)], nil
		},
		Verify: func(secret, hash string) (bool, error) {
			h.verifies++
			return hash == "hash:"+secret, nil
		},
		Permissions: func(context.Context, string) ([]permission.Record, error) {
			return h.records, h.permErr
		},
		AllCompanies: func() []string { return []string{"acme", "globex", "initech"} },
		Issue:        codec.Issue,
		MetricInc:    func(id int) { h.metricCount[id]++ },
		Audit:        func(_ context.Context, a LoginAudit) { h.audits = append(h.audits, a) },
		Metrics:      LoginMetrics{LoginSuccess: 1, LoginFailure: 2, LoginRateLimited: 3, BreakGlass: 4, SessionIssued: 5},
		Events: LoginEvents{
			LoginSuccess: "login_success", LoginFailure: "login_failure",
			LoginRateLimited: "login_rate_limited", BreakGlass: "login_break_glass",
		},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errInvalid,
			StoreUnavailable:   errUnavailable,
			SessionIssueFailed: errIssue,
			RateLimited: func(resetAt time.Time) error {
				return fmt.Errorf("%w until %s", errLimited, resetAt.Format(time.RFC3339))
			},
		},
	}
}

func attempt(identifier, secret string) LoginInput {
	return LoginInput{Identifier: identifier, Secret: secret, ClientIP: "10.0.0.1", UserAgent: "test-agent"}
}

func TestRunLoginSuccess(t *testing.T) {
	h := newLoginHarness()
	res, err := RunLogin(context.Background(), attempt("ana@example.com", "correct-password"), h.deps())
	require.NoError(t, err)

	assert.NotEmpty(t, res.Token)
	assert.False(t, res.BreakGlass)
	assert.Equal(t, "7", res.Payload.Subject)
	assert.Equal(t, permission.RoleManager, res.Payload.Role)
	assert.Equal(t, []string{"acme", "globex"}, res.Payload.Companies)

	require.Len(t, h.audits, 1)
	a := h.audits[0]
	assert.Equal(t, "login_success", a.EventType)
	assert.True(t, a.Success)
	assert.Equal(t, "ana@example.com", a.Identifier)
	assert.Equal(t, "10.0.0.1", a.IP)
	assert.Equal(t, "test-agent", a.UserAgent)
	assert.Equal(t, 1, h.metricCount[1])
	assert.Equal(t, 1, h.metricCount[5])
}

func TestRunLoginUniformFailures(t *testing.T) {
	cases := map[string]LoginInput{
		"unknown user":  attempt("nobody@example.com", "correct-password"),
		"inactive user": attempt("off@example.com", "correct-password"),
		"wrong secret":  attempt("ana@example.com", "wrong"),
		"missing field": attempt("ana@example.com", ""),
		"not email":     attempt("ana", "correct-password"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			h := newLoginHarness()
			res, err := RunLogin(context.Background(), in, h.deps())
			assert.Nil(t, res)
			assert.Same(t, errInvalid, err)
			require.Len(t, h.audits, 1)
			assert.Equal(t, "login_failure", h.audits[0].EventType)
			assert.False(t, h.audits[0].Success)
		})
	}
}

func TestRunLoginBruteForceStopsBeforeLookup(t *testing.T) {
	h := newLoginHarness()
	deps := h.deps()

	for i := 0; i < 10; i++ {
		_, err := RunLogin(context.Background(), attempt("ana@example.com", "wrong"), deps)
		require.ErrorIs(t, err, errInvalid)
	}
	lookupsAtLimit, verifiesAtLimit := h.lookups, h.verifies

	_, err := RunLogin(context.Background(), attempt("ANA@example.com", "wrong"), deps)
	require.ErrorIs(t, err, errLimited)

	assert.Equal(t, lookupsAtLimit, h.lookups, "no lookup after the limit")
	assert.Equal(t, verifiesAtLimit, h.verifies, "no credential check after the limit")
	assert.Equal(t, "login_rate_limited", h.audits[len(h.audits)-1].EventType)
	assert.Equal(t, 1, h.metricCount[3])
}

func TestRunLoginRateLimitKeysOnIPAndIdentifier(t *testing.T) {
	h := newLoginHarness()
	deps := h.deps()
	deps.MaxAttempts = 1

	_, err := RunLogin(context.Background(), attempt("ana@example.com", "wrong"), deps)
	require.ErrorIs(t, err, errInvalid)

	other := attempt("ana@example.com", "correct-password")
	other.ClientIP = "10.0.0.2"
	_, err = RunLogin(context.Background(), other, deps)
	require.NoError(t, err, "different IP has its own budget")

	_, err = RunLogin(context.Background(), attempt("bob@example.com", "x"), deps)
	require.ErrorIs(t, err, errInvalid, "different identifier has its own budget")
}

func TestRunLoginLimiterErrorFailsClosed(t *testing.T) {
	h := newLoginHarness()
	deps := h.deps()
	deps.CheckRate = func(context.Context, string, int, time.Duration) (rate.Result, error) {
		return rate.Result{}, errors.New("redis down")
	}

	_, err := RunLogin(context.Background(), attempt("ana@example.com", "correct-password"), deps)
	assert.ErrorIs(t, err, errLimited)
	assert.Zero(t, h.lookups)
}

func TestRunLoginBreakGlass(t *testing.T) {
	h := newLoginHarness()
	res, err := RunLogin(context.Background(), attempt("OPS@example.com", "glass-secret"), h.deps())
	require.NoError(t, err)

	assert.True(t, res.BreakGlass)
	assert.Equal(t, session.BreakGlassSubject, res.Payload.Subject)
	assert.Equal(t, permission.RoleAdmin, res.Payload.Role)
	assert.Equal(t, BreakGlassName, res.Payload.Name)
	assert.Equal(t, []string{"acme", "globex", "initech"}, res.Payload.Companies)
	assert.Zero(t, h.lookups)

	require.Len(t, h.audits, 1)
	assert.Equal(t, "login_break_glass", h.audits[0].EventType)
}

func TestRunLoginBreakGlassIsRateLimited(t *testing.T) {
	h := newLoginHarness()
	deps := h.deps()
	deps.MaxAttempts = 1

	_, err := RunLogin(context.Background(), attempt("ops@example.com", "guess"), deps)
	require.ErrorIs(t, err, errInvalid)

	_, err = RunLogin(context.Background(), attempt("ops@example.com", "glass-secret"), deps)
	assert.ErrorIs(t, err, errLimited)
}

func TestRunLoginBreakGlassDisabledFallsThrough(t *testing.T) {
	h := newLoginHarness()
	deps := h.deps()
	deps.BreakGlassEnabled = false

	res, err := RunLogin(context.Background(), attempt("ops@example.com", "glass-secret"), deps)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errInvalid)
	assert.Equal(t, 1, h.lookups, "falls through to the user store")
}

func TestRunLoginStoreErrorIsGeneric(t *testing.T) {
	h := newLoginHarness()
	h.findErr = errors.New("dial tcp: connection refused")

	var warned bool
	deps := h.deps()
	deps.Warn = func(string, error, map[string]any) { warned = true }

	_, err := RunLogin(context.Background(), attempt("ana@example.com", "correct-password"), deps)
	assert.Same(t, errInvalid, err)
	assert.True(t, warned)
	require.Len(t, h.audits, 1)
	assert.ErrorIs(t, h.audits[0].Err, errUnavailable)
}

func TestRunLoginPermissionErrorIssuesEmptyCompanies(t *testing.T) {
	h := newLoginHarness()
	h.permErr = errors.New("timeout")

	res, err := RunLogin(context.Background(), attempt("ana@example.com", "correct-password"), h.deps())
	require.NoError(t, err)
	assert.NotNil(t, res.Payload.Companies)
	assert.Empty(t, res.Payload.Companies)
}

func TestRunLoginAuditNeverCarriesSecret(t *testing.T) {
	h := newLoginHarness()
	_, _ = RunLogin(context.Background(), attempt("ana@example.com", "correct-password"), h.deps())
	_, _ = RunLogin(context.Background(), attempt("ana@example.com", "wrong-secret-value"), h.deps())
	_, _ = RunLogin(context.Background(), attempt("ops@example.com", "glass-secret"), h.deps())

	for _, a := range h.audits {
		dump := fmt.Sprintf("%+v", a)
		assert.NotContains(t, dump, "correct-password")
		assert.NotContains(t, dump, "wrong-secret-value")
		assert.NotContains(t, dump, "glass-secret")
	}
}

func TestRunLoginMissingDeps(t *testing.T) {
	_, err := RunLogin(context.Background(), attempt("a@b.c", "x"), LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	assert.Same(t, errNotReady, err)
}

package dashauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/c2tech/dashauth/password"
	"github.com/c2tech/dashauth/permission"
)

const (
	testSecret        = "0123456789abcdef0123456789abcdef-test"
	testPassword      = "correct-password"
	testBreakGlassID  = "ops@example.com"
	testBreakGlassPwd = "break-glass-secret"
)

var testCompanies = []string{"acme", "globex", "initech"}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*UserRecord
	err   error
	delay time.Duration
	calls int
}

func (s *fakeUserStore) add(u UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = map[string]*UserRecord{}
	}
	s.users[u.ID] = &u
}

func (s *fakeUserStore) FindUserByIdentifier(ctx context.Context, identifier string) (*UserRecord, error) {
	s.mu.Lock()
	s.calls++
	err, delay := s.err, s.delay
	var found *UserRecord
	for _, u := range s.users {
		if strings.EqualFold(u.Identifier, identifier) {
			cp := *u
			found = &cp
		}
	}
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *fakeUserStore) FindUserByID(ctx context.Context, id string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakePermissionStore struct {
	mu      sync.Mutex
	records map[string][]permission.Record
	err     error
	delay   time.Duration
	calls   int
}

func (s *fakePermissionStore) Permissions(ctx context.Context, userID string) ([]permission.Record, error) {
	s.mu.Lock()
	s.calls++
	err, delay := s.err, s.delay
	records := append([]permission.Record(nil), s.records[userID]...)
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *fakePermissionStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testEnv struct {
	engine *Engine
	users  *fakeUserStore
	perms  *fakePermissionStore
	audit  *ChannelSink
	hook   *test.Hook
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.Secret = testSecret
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Companies = append([]string(nil), testCompanies...)
	cfg.BreakGlass = BreakGlassConfig{
		Enabled:    false,
		Identifier: testBreakGlassID,
		Secret:     testBreakGlassPwd,
	}
	return cfg
}

func hashForTest(t *testing.T, secret string) string {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	out, err := h.Hash(secret)
	require.NoError(t, err)
	return out
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := &fakeUserStore{}
	users.add(UserRecord{
		ID:           "u-alice",
		Identifier:   "alice@example.com",
		DisplayName:  "Alice",
		Role:         "manager",
		Active:       true,
		PasswordHash: hashForTest(t, testPassword),
	})
	users.add(UserRecord{
		ID:           "u-bob",
		Identifier:   "bob@example.com",
		DisplayName:  "Bob",
		Role:         "viewer",
		Active:       false,
		PasswordHash: hashForTest(t, testPassword),
	})

	perms := &fakePermissionStore{records: map[string][]permission.Record{
		"u-alice": {
			{UserID: "u-alice", Company: "acme", Mask: permission.MaskOf(permission.ViewDashboard, permission.ViewInbox, permission.EditInbox)},
			{UserID: "u-alice", Company: "globex", Mask: permission.MaskOf(permission.ViewDashboard)},
		},
	}}

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	sink := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(users).
		WithPermissionStore(perms).
		WithAuditSink(sink).
		WithLogger(log).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, perms: perms, audit: sink, hook: hook}
}

func loginCtx(ip string) context.Context {
	ctx := WithClientIP(context.Background(), ip)
	return WithUserAgent(ctx, "test-agent/1.0")
}

// nextAudit returns the next audit event of eventType, skipping others.
func nextAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %q audit event", eventType)
			return AuditEvent{}
		}
	}
}

func TestLoginSessionCookieRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.engine.Login(loginCtx("10.0.0.1"), LoginRequest{
		Identifier: "alice@example.com",
		Secret:     testPassword,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.False(t, res.BreakGlass)

	cookie := env.engine.SessionCookie(nil, res.Token)
	assert.Equal(t, "app_session", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int((12 * time.Hour).Seconds()), cookie.MaxAge)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(cookie)

	s := env.engine.RequireAuth(req)
	require.NotNil(t, s)
	assert.Equal(t, "u-alice", s.Subject)
	assert.Equal(t, "alice@example.com", s.Email)
	assert.Equal(t, "Alice", s.Name)
	assert.Equal(t, permission.RoleManager, s.Role)
	assert.Equal(t, []string{"acme", "globex"}, s.Companies)

	ev := nextAudit(t, env.audit, auditEventLoginSuccess)
	assert.True(t, ev.Success)
	assert.Equal(t, "u-alice", ev.UserID)
	assert.Equal(t, "10.0.0.1", ev.IP)
	assert.Equal(t, "test-agent/1.0", ev.UserAgent)
	assert.NotEmpty(t, ev.ID)

	snap := env.engine.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricLoginSuccess])
	assert.Equal(t, uint64(1), snap.Counters[MetricSessionIssued])
}

func TestRequireAuthRejectsMissingAndForgedCookies(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, env.engine.RequireAuth(req))

	token, err := env.engine.IssueSession(Claims{Subject: "u-alice", Role: permission.RoleViewer})
	require.NoError(t, err)

	forged := token[:len(token)-2] + "AA"
	if forged == token {
		forged = token[:len(token)-2] + "BB"
	}
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(env.engine.SessionCookie(nil, forged))
	assert.Nil(t, env.engine.RequireAuth(req))
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricSessionRejected])
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []LoginRequest{
		{Identifier: "nobody@example.com", Secret: testPassword},
		{Identifier: "bob@example.com", Secret: testPassword},
		{Identifier: "alice@example.com", Secret: "wrong"},
		{Identifier: "not-an-email", Secret: testPassword},
		{Identifier: "", Secret: testPassword},
		{Identifier: "alice@example.com", Secret: ""},
	}
	for i, req := range cases {
		_, err := env.engine.Login(loginCtx("10.0.0.2"), req)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "case %d", i)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error(), "case %d", i)
	}
}

func TestLoginBruteForceLimitedBeforeLookup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := loginCtx("10.0.0.3")

	for i := 0; i < 10; i++ {
		_, err := env.engine.Login(ctx, LoginRequest{Identifier: "alice@example.com", Secret: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	require.Equal(t, 10, env.users.callCount())

	_, err := env.engine.Login(ctx, LoginRequest{Identifier: "Alice@Example.com ", Secret: testPassword})
	require.ErrorIs(t, err, ErrLoginRateLimited)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Greater(t, rl.RetryAfter(time.Now()), 0)
	assert.Equal(t, 10, env.users.callCount())

	// Another client address has its own window.
	_, err = env.engine.Login(loginCtx("10.0.0.4"), LoginRequest{Identifier: "alice@example.com", Secret: testPassword})
	require.NoError(t, err)

	ev := nextAudit(t, env.audit, auditEventLoginRateLimited)
	assert.Equal(t, string(auditErrRateLimited), ev.Error)
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricLoginRateLimited])
}

func TestLoginBreakGlassDisabledFallsThrough(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.Login(loginCtx("10.0.0.5"), LoginRequest{
		Identifier: testBreakGlassID,
		Secret:     testBreakGlassPwd,
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, env.users.callCount())
}

func TestLoginBreakGlassEnabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.BreakGlass.Enabled = true })

	res, err := env.engine.Login(loginCtx("10.0.0.6"), LoginRequest{
		Identifier: "OPS@example.com",
		Secret:     testBreakGlassPwd,
	})
	require.NoError(t, err)
	assert.True(t, res.BreakGlass)
	assert.Equal(t, "break-glass", res.Session.Subject)
	assert.Equal(t, "Admin (Break-glass)", res.Session.Name)
	assert.Equal(t, permission.RoleAdmin, res.Session.Role)
	assert.Equal(t, testCompanies, res.Session.Companies)
	assert.Zero(t, env.users.callCount())

	ev := nextAudit(t, env.audit, auditEventLoginBreakGlass)
	assert.True(t, ev.Success)

	active, err := env.engine.ConfirmActive(context.Background(), &res.Session)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestBreakGlassSessionEndsWhenDisabled(t *testing.T) {
	enabled := newTestEnv(t, func(c *Config) { c.BreakGlass.Enabled = true })
	res, err := enabled.engine.Login(loginCtx("10.0.0.7"), LoginRequest{
		Identifier: testBreakGlassID,
		Secret:     testBreakGlassPwd,
	})
	require.NoError(t, err)

	_, ok := enabled.engine.VerifySession(res.Token)
	require.True(t, ok)

	disabled := newTestEnv(t, nil)
	_, ok = disabled.engine.VerifySession(res.Token)
	assert.False(t, ok)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(disabled.engine.SessionCookie(req, res.Token))
	assert.Nil(t, disabled.engine.RequireAuth(req))

	active, err := disabled.engine.ConfirmActive(context.Background(), &res.Session)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Zero(t, disabled.users.callCount())
}

func TestLoginBreakGlassWrongSecretFallsThrough(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.BreakGlass.Enabled = true })

	_, err := env.engine.Login(loginCtx("10.0.0.7"), LoginRequest{
		Identifier: testBreakGlassID,
		Secret:     "guess",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, env.users.callCount())
}

func TestLoginBreakGlassIsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.BreakGlass.Enabled = true
		c.RateLimit.LoginMaxAttempts = 2
	})
	ctx := loginCtx("10.0.0.8")

	for i := 0; i < 2; i++ {
		_, err := env.engine.Login(ctx, LoginRequest{Identifier: testBreakGlassID, Secret: "guess"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := env.engine.Login(ctx, LoginRequest{Identifier: testBreakGlassID, Secret: testBreakGlassPwd})
	require.ErrorIs(t, err, ErrLoginRateLimited)
}

func TestLoginStoreFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.err = errors.New("dial tcp 10.1.1.1:5432: connection refused password=hunter2")

	_, err := env.engine.Login(loginCtx("10.0.0.9"), LoginRequest{
		Identifier: "alice@example.com",
		Secret:     testPassword,
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotContains(t, err.Error(), "connection refused")

	ev := nextAudit(t, env.audit, auditEventLoginFailure)
	assert.Equal(t, string(auditErrUnavailable), ev.Error)

	var warned bool
	for _, entry := range env.hook.AllEntries() {
		if entry.Message == "user lookup failed" {
			warned = true
			assert.Equal(t, logrus.WarnLevel, entry.Level)
		}
	}
	assert.True(t, warned)
}

func TestLoginLookupTimeout(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Store.LookupTimeout = 20 * time.Millisecond })
	env.users.delay = 500 * time.Millisecond

	start := time.Now()
	_, err := env.engine.Login(loginCtx("10.0.0.10"), LoginRequest{
		Identifier: "alice@example.com",
		Secret:     testPassword,
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestLoginPermissionFailureIssuesEmptyCompanies(t *testing.T) {
	env := newTestEnv(t, nil)
	env.perms.err = errors.New("permissions table missing")

	res, err := env.engine.Login(loginCtx("10.0.0.11"), LoginRequest{
		Identifier: "alice@example.com",
		Secret:     testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, res.Session.Companies)
}

func TestLoginForcePasswordResetSurfaced(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.add(UserRecord{
		ID:                 "u-carol",
		Identifier:         "carol@example.com",
		Role:               "viewer",
		Active:             true,
		PasswordHash:       hashForTest(t, testPassword),
		ForcePasswordReset: true,
	})

	res, err := env.engine.Login(loginCtx("10.0.0.12"), LoginRequest{
		Identifier: "carol@example.com",
		Secret:     testPassword,
	})
	require.NoError(t, err)
	assert.True(t, res.ForcePasswordReset)
}

func TestLoginAuditNeverCarriesSecrets(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.engine.Login(loginCtx("10.0.0.13"), LoginRequest{
		Identifier: "alice@example.com",
		Secret:     testPassword,
	})
	require.NoError(t, err)
	_, _ = env.engine.Login(loginCtx("10.0.0.13"), LoginRequest{
		Identifier: "alice@example.com",
		Secret:     "wrong-secret-value",
	})

	for _, ev := range []AuditEvent{
		nextAudit(t, env.audit, auditEventLoginSuccess),
		nextAudit(t, env.audit, auditEventLoginFailure),
	} {
		dump := strings.Join([]string{ev.Identifier, ev.Error, ev.UserID}, "|")
		for k, v := range ev.Metadata {
			dump += "|" + k + "=" + v
		}
		assert.NotContains(t, dump, testPassword)
		assert.NotContains(t, dump, "wrong-secret-value")
		assert.NotContains(t, dump, res.Token)
	}
}

func TestConfirmActive(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ok, err := env.engine.ConfirmActive(ctx, &Session{Subject: "u-alice", Role: permission.RoleManager})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.engine.ConfirmActive(ctx, &Session{Subject: "u-bob", Role: permission.RoleViewer})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.engine.ConfirmActive(ctx, &Session{Subject: "u-gone", Role: permission.RoleViewer})
	require.NoError(t, err)
	assert.False(t, ok)

	env.users.err = errors.New("down")
	ok, err = env.engine.ConfirmActive(ctx, &Session{Subject: "u-alice", Role: permission.RoleManager})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, ok)
}

func TestLogoutAudited(t *testing.T) {
	env := newTestEnv(t, nil)

	env.engine.Logout(loginCtx("10.0.0.14"), &Session{Subject: "u-alice", Email: "alice@example.com"})

	ev := nextAudit(t, env.audit, auditEventLogout)
	assert.True(t, ev.Success)
	assert.Equal(t, "u-alice", ev.UserID)

	clear := env.engine.ClearSessionCookie(nil)
	assert.Equal(t, "app_session", clear.Name)
	assert.Equal(t, -1, clear.MaxAge)
}

func TestUserAccess(t *testing.T) {
	env := newTestEnv(t, nil)

	user, records, err := env.engine.UserAccess(context.Background(), "u-alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Len(t, records, 2)

	user, records, err = env.engine.UserAccess(context.Background(), "u-gone")
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Nil(t, records)
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine

	_, err := e.Login(context.Background(), LoginRequest{})
	assert.ErrorIs(t, err, ErrEngineNotReady)
	assert.False(t, e.Can(context.Background(), &Session{Role: permission.RoleAdmin}, permission.ResourceDashboard, permission.ActionView, ""))
	assert.Equal(t, []string{}, e.AllowedCompanies(context.Background(), nil, permission.ResourceDashboard, permission.ActionView))
	_, ok := e.VerifySession("x.y")
	assert.False(t, ok)
	e.Close()
}

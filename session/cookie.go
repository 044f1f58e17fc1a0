package session

import (
	"net/http"
	"strings"
	"time"
)

// SecureMode selects how the Secure cookie attribute is decided.
type SecureMode string

const (
	// SecureAuto sets Secure when the request arrived over TLS, directly or
	// through a trusted X-Forwarded-Proto header.
	SecureAuto   SecureMode = "auto"
	SecureAlways SecureMode = "always"
	SecureNever  SecureMode = "never"
)

// Valid reports whether m is a known mode.
func (m SecureMode) Valid() bool {
	switch m {
	case SecureAuto, SecureAlways, SecureNever:
		return true
	default:
		return false
	}
}

// DefaultCookieName is used when a policy has no name.
const DefaultCookieName = "app_session"

// CookiePolicy builds the cookies that carry session tokens.
type CookiePolicy struct {
	Name                string
	Path                string
	SameSite            http.SameSite
	TTL                 time.Duration
	Secure              SecureMode
	TrustForwardedProto bool
	// ProductionMode decides Secure in auto mode when no request is available.
	ProductionMode bool
}

func (p CookiePolicy) name() string {
	if p.Name == "" {
		return DefaultCookieName
	}
	return p.Name
}

func (p CookiePolicy) path() string {
	if p.Path == "" {
		return "/"
	}
	return p.Path
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.SameSite == 0 || p.SameSite == http.SameSiteDefaultMode {
		return http.SameSiteLaxMode
	}
	return p.SameSite
}

// SecureFor reports whether a cookie set in response to r gets the Secure
// attribute. r may be nil.
func (p CookiePolicy) SecureFor(r *http.Request) bool {
	switch p.Secure {
	case SecureAlways:
		return true
	case SecureNever:
		return false
	}

	if r == nil {
		return p.ProductionMode
	}
	if r.TLS != nil {
		return true
	}
	if !p.TrustForwardedProto {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// Cookie returns the cookie carrying token.
func (p CookiePolicy) Cookie(r *http.Request, token string) *http.Cookie {
	return &http.Cookie{
		Name:     p.name(),
		Value:    token,
		Path:     p.path(),
		MaxAge:   int(p.TTL / time.Second),
		HttpOnly: true,
		Secure:   p.SecureFor(r),
		SameSite: p.sameSite(),
	}
}

// Clear returns a cookie that removes the session cookie immediately.
// net/http renders a negative MaxAge as "Max-Age=0".
func (p CookiePolicy) Clear(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     p.name(),
		Value:    "",
		Path:     p.path(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.SecureFor(r),
		SameSite: p.sameSite(),
	}
}

// Read returns the session cookie value on r, or "" when absent.
func (p CookiePolicy) Read(r *http.Request) string {
	if r == nil {
		return ""
	}
	c, err := r.Cookie(p.name())
	if err != nil {
		return ""
	}
	return c.Value
}

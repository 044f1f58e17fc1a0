package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/permission"
)

// DefaultLoginPath is where [RequirePageSession] sends unauthenticated
// browsers.
const DefaultLoginPath = "/login"

// RequireAPISession rejects requests without a valid session cookie with a
// JSON 401.
func RequireAPISession(engine *dashauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := engine.RequireAuth(r)
			if s == nil {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(dashauth.WithSession(r.Context(), s)))
		})
	}
}

// RequirePageSession redirects requests without a valid session cookie to
// loginPath?from=<original path>. An empty loginPath uses
// [DefaultLoginPath].
func RequirePageSession(engine *dashauth.Engine, loginPath string) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := engine.RequireAuth(r)
			if s == nil {
				http.Redirect(w, r, loginRedirect(loginPath, r.URL), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(dashauth.WithSession(r.Context(), s)))
		})
	}
}

func loginRedirect(loginPath string, from *url.URL) string {
	target := "/"
	if from != nil && from.Path != "" {
		target = from.Path
		if from.RawQuery != "" {
			target += "?" + from.RawQuery
		}
	}
	// Only same-site relative paths are echoed back.
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		target = "/"
	}
	return loginPath + "?" + url.Values{"from": {target}}.Encode()
}

// CompanyFunc extracts the company a request is scoped to. An empty result
// means "any company".
type CompanyFunc func(*http.Request) string

// CompanyFromQuery reads the company from a query parameter.
func CompanyFromQuery(param string) CompanyFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.URL.Query().Get(param))
	}
}

// CompanyFromVar reads the company from a gorilla/mux route variable.
func CompanyFromVar(name string) CompanyFunc {
	return func(r *http.Request) string {
		return mux.Vars(r)[name]
	}
}

// RequireCapability lets the request through only when the session placed
// by a guard may perform action on resource. company may be nil.
func RequireCapability(engine *dashauth.Engine, resource permission.Resource, action permission.Action, company CompanyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := dashauth.SessionFromContext(r.Context())
			if !ok {
				s = engine.RequireAuth(r)
			}

			var c string
			if company != nil {
				c = company(r)
			}

			err := engine.Authorize(r.Context(), s, resource, action, c)
			switch {
			case err == nil:
			case errors.Is(err, dashauth.ErrUnauthorized):
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			default:
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r.WithContext(dashauth.WithSession(r.Context(), s)))
		})
	}
}

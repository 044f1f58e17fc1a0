package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/c2tech/dashauth"
)

// ClientIP resolves the caller address. With trustProxy it prefers the
// first X-Forwarded-For entry, then X-Real-IP; otherwise, and as a last
// resort, the host part of RemoteAddr.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientContext attaches the client IP and User-Agent to the request
// context for rate limiting and audit records.
func ClientContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := dashauth.WithClientIP(r.Context(), ClientIP(r, trustProxy))
			ctx = dashauth.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

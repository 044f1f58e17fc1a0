package internaldefs

import "github.com/c2tech/dashauth"

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   dashauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   dashauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: dashauth.MetricLoginSuccess, Name: "dashauth_login_success_total", Help: "Successful logins through the user store."},
	{ID: dashauth.MetricLoginFailure, Name: "dashauth_login_failure_total", Help: "Failed login attempts."},
	{ID: dashauth.MetricLoginRateLimited, Name: "dashauth_login_rate_limited_total", Help: "Login attempts rejected by the rate limiter."},
	{ID: dashauth.MetricBreakGlassLogin, Name: "dashauth_break_glass_login_total", Help: "Successful break-glass logins."},
	{ID: dashauth.MetricSessionIssued, Name: "dashauth_session_issued_total", Help: "Issued session tokens."},
	{ID: dashauth.MetricSessionRejected, Name: "dashauth_session_rejected_total", Help: "Presented session tokens that failed verification."},
	{ID: dashauth.MetricAuthorizeAllowed, Name: "dashauth_authorize_allowed_total", Help: "Authorization checks that allowed."},
	{ID: dashauth.MetricAuthorizeDenied, Name: "dashauth_authorize_denied_total", Help: "Authorization checks that denied."},
	{ID: dashauth.MetricAuthorizeStoreError, Name: "dashauth_authorize_store_error_total", Help: "Authorization checks denied because the permission store failed."},
	{ID: dashauth.MetricLogout, Name: "dashauth_logout_total", Help: "Logout operations."},
	{ID: dashauth.MetricRateLimitHit, Name: "dashauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: dashauth.MetricAuditSinkFailure, Name: "dashauth_audit_sink_failure_total", Help: "Audit events the sink failed to write."},
}

var HistogramDefs = []HistogramDef{
	{ID: dashauth.MetricAuthorizeLatency, Name: "dashauth_authorize_latency_seconds", Help: "Authorization check latency."},
}

// HistogramBounds are the upper bounds, in seconds, of every bucket but
// the last (+Inf).
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that publish buckets as separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-padding.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

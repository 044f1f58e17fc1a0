// Package prometheus exposes dashauth engine metrics through a
// client_golang [prometheus.Collector].
//
// Counters are published as dashauth_*_total and the authorization
// latency histogram as dashauth_authorize_latency_seconds. Callers either
// register the [Collector] with their own registry or mount
// [Collector.Handler], which uses a private registry. Nothing is
// registered globally.
package prometheus

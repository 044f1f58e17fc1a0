// Package otel binds dashauth engine metrics to an OpenTelemetry
// [metric.Meter].
//
// Every counter becomes an Int64ObservableCounter. The authorization
// latency histogram is published as one cumulative gauge per bucket plus
// a count gauge. A single callback reads the engine snapshot per
// collection; callers own the MeterProvider.
package otel

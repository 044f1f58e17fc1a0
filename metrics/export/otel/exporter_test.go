package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/c2tech/dashauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot dashauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() dashauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := dashauth.MetricsSnapshot{
		Counters:   make(map[dashauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[dashauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, b := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), b...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) AuditFailed() uint64 { return 0 }

func newMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collectInt(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsSnapshot(t *testing.T) {
	reader, provider := newMeter(t)

	src := &fakeSource{
		snapshot: dashauth.MetricsSnapshot{
			Counters: map[dashauth.MetricID]uint64{
				dashauth.MetricLoginSuccess:    3,
				dashauth.MetricAuthorizeDenied: 2,
			},
			Histograms: map[dashauth.MetricID][]uint64{
				dashauth.MetricAuthorizeLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("dashauth-test"), src)
	require.NoError(t, err)
	defer func() { assert.NoError(t, exp.Close()) }()

	got := collectInt(t, reader)
	assert.Equal(t, int64(3), got["dashauth_login_success_total"])
	assert.Equal(t, int64(2), got["dashauth_authorize_denied_total"])
	assert.Equal(t, int64(1), got["dashauth_audit_dropped_total"])
	assert.Equal(t, int64(1), got["dashauth_authorize_latency_seconds_bucket_le_0_005"])
	assert.Equal(t, int64(8), got["dashauth_authorize_latency_seconds_bucket_le_inf"])
	assert.Equal(t, int64(8), got["dashauth_authorize_latency_seconds_count"])
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter(t)

	_, err := NewExporterFromSource(provider.Meter("dashauth-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)

	_, err = NewExporter(provider.Meter("dashauth-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newMeter(t)
	src := &fakeSource{
		snapshot: dashauth.MetricsSnapshot{
			Counters: map[dashauth.MetricID]uint64{dashauth.MetricLoginSuccess: 1},
		},
	}
	exp, err := NewExporterFromSource(provider.Meter("dashauth-test"), src)
	require.NoError(t, err)
	defer func() { assert.NoError(t, exp.Close()) }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[dashauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			assert.NoError(t, reader.Collect(context.Background(), &rm))
		}(uint64(i))
	}
	wg.Wait()
}

func TestCloseIsSafeOnNil(t *testing.T) {
	var exp *Exporter
	assert.NoError(t, exp.Close())
}

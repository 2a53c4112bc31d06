// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordCycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCycle(ctx, 192, false, 2*time.Millisecond)
	m.RecordCycle(ctx, 384, true, 5*time.Millisecond)

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "listener.frames_read"); got != 576 {
		t.Errorf("frames_read = %d, want 576", got)
	}
	if got := sumInt64(t, rm, "listener.overflows"); got != 1 {
		t.Errorf("overflows = %d, want 1", got)
	}

	h := findMetric(rm, "listener.cycle.duration")
	if h == nil {
		t.Fatal("listener.cycle.duration not found")
	}
	hist, ok := h.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Errorf("unexpected cycle histogram: %+v", h.Data)
	}
}

func TestSessionsAndPulls(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionStarted(ctx, "tcp")
	m.SessionStarted(ctx, "websocket")
	m.SessionEnded(ctx, "websocket")
	for range 3 {
		m.RecordPull(ctx, "tcp")
	}

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "listener.active_sessions"); got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "listener.pulls"); got != 3 {
		t.Errorf("pulls = %d, want 3", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPull(ctx, "tcp")
	m.RecordCycle(ctx, 1, true, time.Second)
	m.SessionStarted(ctx, "tcp")
	m.SessionEnded(ctx, "tcp")
}

func TestProviderServesPrometheus(t *testing.T) {
	p, err := NewProvider("test")
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordPull(context.Background(), "tcp")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "listener_pulls") {
		t.Errorf("/metrics output lacks listener_pulls:\n%s", body)
	}
}

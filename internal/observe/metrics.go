// SPDX-License-Identifier: MIT
// Package observe holds the OpenTelemetry instruments recorded by the pull
// pipeline and its transports, and the Prometheus bridge that exposes them.
//
// Every record method is safe on a nil *Metrics so that metrics stay optional.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "listener"

// Metrics holds all metric instruments for the listener.
type Metrics struct {
	// Pulls counts pull requests. Use with attribute transport.
	Pulls metric.Int64Counter

	// FramesRead counts frames read from the capture source.
	FramesRead metric.Int64Counter

	// Overflows counts reads on which the source reported dropped input.
	Overflows metric.Int64Counter

	// CycleDuration tracks capture to encoded line latency.
	CycleDuration metric.Float64Histogram

	// ActiveSessions tracks connected pull clients. Use with attribute transport.
	ActiveSessions metric.Int64UpDownCounter
}

// cycleBuckets (seconds) span one 192-frame window at 44.1 kHz up to a
// client that has not pulled for a second.
var cycleBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Pulls, err = m.Int64Counter("listener.pulls",
		metric.WithDescription("Pull requests served, by transport."),
	); err != nil {
		return nil, err
	}
	if met.FramesRead, err = m.Int64Counter("listener.frames_read",
		metric.WithDescription("Frames read from the capture source."),
	); err != nil {
		return nil, err
	}
	if met.Overflows, err = m.Int64Counter("listener.overflows",
		metric.WithDescription("Capture reads that reported an input overflow."),
	); err != nil {
		return nil, err
	}
	if met.CycleDuration, err = m.Float64Histogram("listener.cycle.duration",
		metric.WithDescription("Latency from pull to encoded bar line."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cycleBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("listener.active_sessions",
		metric.WithDescription("Connected pull clients, by transport."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func transportAttr(transport string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("transport", transport))
}

// RecordPull counts one pull on transport.
func (m *Metrics) RecordPull(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.Pulls.Add(ctx, 1, transportAttr(transport))
}

// RecordCycle records a completed cycle that read frames.
func (m *Metrics) RecordCycle(ctx context.Context, frames int, overflowed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.FramesRead.Add(ctx, int64(frames))
	if overflowed {
		m.Overflows.Add(ctx, 1)
	}
	m.CycleDuration.Record(ctx, d.Seconds())
}

// SessionStarted and SessionEnded bracket one client connection.
func (m *Metrics) SessionStarted(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1, transportAttr(transport))
}

func (m *Metrics) SessionEnded(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1, transportAttr(transport))
}

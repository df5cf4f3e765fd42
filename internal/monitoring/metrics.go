// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational visibility:
//   - lines_read / parsed / malformed: ingest pipeline throughput
//   - alerts_dispatched / alerts_suppressed: policy engine activity
//   - delivery_failures: webhook problems operators should investigate
//
// Exposed through the liveness endpoint. For production, export these to
// Prometheus or similar.
package monitoring

import "sync/atomic"

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	linesRead        atomic.Int64
	parsed           atomic.Int64
	malformed        atomic.Int64
	dispatched       atomic.Int64
	suppressed       atomic.Int64
	deliveryFailures atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordLine records one raw line read from the stream.
func (mc *MetricsCollector) RecordLine() { mc.linesRead.Add(1) }

// RecordParsed records a successfully parsed outcome.
func (mc *MetricsCollector) RecordParsed() { mc.parsed.Add(1) }

// RecordMalformed records a skipped malformed line.
func (mc *MetricsCollector) RecordMalformed() { mc.malformed.Add(1) }

// RecordDispatched records a successfully delivered alert.
func (mc *MetricsCollector) RecordDispatched() { mc.dispatched.Add(1) }

// RecordSuppressed records an alert dropped by maintenance mode or cooldown.
func (mc *MetricsCollector) RecordSuppressed() { mc.suppressed.Add(1) }

// RecordDeliveryFailure records a failed webhook delivery.
func (mc *MetricsCollector) RecordDeliveryFailure() { mc.deliveryFailures.Add(1) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"lines_read":        mc.linesRead.Load(),
		"parsed":            mc.parsed.Load(),
		"malformed":         mc.malformed.Load(),
		"alerts_dispatched": mc.dispatched.Load(),
		"alerts_suppressed": mc.suppressed.Load(),
		"delivery_failures": mc.deliveryFailures.Load(),
	}
}

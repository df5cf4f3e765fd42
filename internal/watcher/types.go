// Package watcher derives alert signals from a reverse proxy's access log.
//
// DESIGN: One ordered stream of request outcomes drives two trackers:
//   - Window:      rolling error rate over the last N requests
//   - PoolTracker: identity of the pool currently serving traffic
//
// The Engine turns tracker signals into deduplicated, rate-limited alerts.
// The Runtime owns the read->parse->track->evaluate->dispatch loop.
package watcher

import (
	"context"
	"time"
)

// Kind identifies a class of alert. Cooldown is tracked per kind.
type Kind string

const (
	KindWatcherStarted Kind = "watcher_started"
	KindFailover       Kind = "failover"
	KindHighErrorRate  Kind = "high_error_rate"
)

// Severity classifies an alert for suppression purposes. Critical alerts
// are never suppressed by maintenance mode.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// severityFor maps each alert kind to its fixed severity.
func severityFor(kind Kind) Severity {
	switch kind {
	case KindFailover:
		return SeverityWarning
	case KindHighErrorRate:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// RequestOutcome is one parsed access-log record. Immutable once parsed.
type RequestOutcome struct {
	Timestamp    time.Time
	Pool         string // empty when the pool could not be determined
	Release      string
	Status       int
	UpstreamAddr string
	Latency      time.Duration
	IsError      bool // status >= 500, or last upstream retry status was 5xx
}

// FailoverEvent records an observed change of the active pool.
type FailoverEvent struct {
	Previous string
	Current  string
	At       time.Time
}

// Alert is a candidate notification produced by the policy engine.
type Alert struct {
	ID        string
	Kind      Kind
	Severity  Severity
	Title     string
	Message   string // mrkdwn body sent to the webhook
	Timestamp time.Time
}

// Notifier delivers an alert to the external sink. Implementations must
// honor context cancellation; a slow sink must not block ingestion.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// Recorder persists dispatch outcomes for troubleshooting. Optional.
type Recorder interface {
	Record(ctx context.Context, alert Alert, delivered bool, deliveryErr string) error
}

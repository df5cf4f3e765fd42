package watcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Decision is the policy engine's verdict on a candidate alert.
type Decision string

const (
	DecisionDispatch    Decision = "dispatch"
	DecisionMaintenance Decision = "suppressed_maintenance"
	DecisionCooldown    Decision = "suppressed_cooldown"
	DecisionInFlight    Decision = "suppressed_inflight"
)

// EngineConfig carries the policy knobs.
type EngineConfig struct {
	ErrorRateThreshold float64 // percent, (0,100]
	MinSamples         int     // window length required before rate checks
	Cooldown           time.Duration
	MaintenanceMode    bool
}

// Engine maps tracker signals to alerts, applying severity classification,
// maintenance-mode suppression and per-kind cooldown deduplication.
//
// Cooldown advances only on confirmed delivery: a failed send leaves the
// kind immediately eligible again. While a send is in flight the kind is
// held back so a burst cannot fan out into duplicate dispatches.
// A suppressed alert is dropped, never queued for later.
type Engine struct {
	cfg EngineConfig
	now func() time.Time

	mu             sync.Mutex
	lastDispatch   map[Kind]time.Time
	inFlight       map[Kind]bool
	startedEmitted bool
}

// NewEngine creates a policy engine with empty cooldown state, so the first
// alert of each kind is always eligible.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		cfg:          cfg,
		now:          time.Now,
		lastDispatch: make(map[Kind]time.Time),
		inFlight:     make(map[Kind]bool),
	}
}

// EvaluateStartup produces the one-time WatcherStarted alert. Info severity,
// maintenance-suppressible, exempt from cooldown.
func (e *Engine) EvaluateStartup(initialPool string) (Alert, Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.startedEmitted {
		return Alert{}, DecisionInFlight
	}
	e.startedEmitted = true

	alert := e.newAlert(KindWatcherStarted, "Watcher Started", fmt.Sprintf(
		"*Watcher Started*\n\nMonitoring is now active.\nInitial pool: `%s`",
		initialPool,
	))

	if e.cfg.MaintenanceMode {
		return alert, DecisionMaintenance
	}
	e.inFlight[KindWatcherStarted] = true
	return alert, DecisionDispatch
}

// EvaluateFailover decides whether a detected pool change becomes an alert.
func (e *Engine) EvaluateFailover(event FailoverEvent) (Alert, Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert := e.newAlert(KindFailover, "Failover Detected", fmt.Sprintf(
		"*Failover Detected*\n\n"+
			"• Previous Pool: `%s`\n"+
			"• Current Pool: `%s`\n"+
			"• Observed At: %s\n\n"+
			"*Action Required:*\n"+
			"1. Check health of `%s` containers\n"+
			"2. Review proxy and upstream logs for errors\n"+
			"3. Verify `%s` is handling traffic correctly",
		event.Previous, event.Current, event.At.UTC().Format(time.RFC3339),
		event.Previous, event.Current,
	))

	return alert, e.admit(alert)
}

// EvaluateErrorRate decides whether the current window crosses the error
// threshold. No alert is possible before MinSamples outcomes have been
// observed, which also guards the empty-window case.
func (e *Engine) EvaluateErrorRate(snap WindowSnapshot, currentPool string, windowSize int) (Alert, Decision, bool) {
	if snap.Length < e.cfg.MinSamples {
		return Alert{}, "", false
	}
	ratePct := snap.ErrorRate * 100
	if ratePct < e.cfg.ErrorRateThreshold {
		return Alert{}, "", false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	alert := e.newAlert(KindHighErrorRate, "High Error Rate", fmt.Sprintf(
		"*High Error Rate Detected*\n\n"+
			"• Error Rate: `%.2f%%` (threshold: %.2f%%)\n"+
			"• Errors: %d/%d requests\n"+
			"• Window Size: %d requests\n"+
			"• Current Pool: `%s`\n\n"+
			"*Action Required:*\n"+
			"1. Check upstream application logs\n"+
			"2. Verify database/external service connectivity\n"+
			"3. Consider a manual pool toggle if issues persist",
		ratePct, e.cfg.ErrorRateThreshold,
		snap.ErrorCount, snap.Length, windowSize, currentPool,
	))

	return alert, e.admit(alert), true
}

// Delivered records a successful dispatch, starting the kind's cooldown.
func (e *Engine) Delivered(kind Kind, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastDispatch[kind] = at
	delete(e.inFlight, kind)
}

// DeliveryFailed releases the in-flight hold without advancing the
// cooldown, so the next occurrence of the kind may retry immediately.
func (e *Engine) DeliveryFailed(kind Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, kind)
}

// admit applies maintenance suppression, then cooldown. Caller holds e.mu.
func (e *Engine) admit(alert Alert) Decision {
	if e.cfg.MaintenanceMode && alert.Severity != SeverityCritical {
		return DecisionMaintenance
	}
	if e.inFlight[alert.Kind] {
		return DecisionInFlight
	}
	if last, ok := e.lastDispatch[alert.Kind]; ok {
		if e.now().Sub(last) < e.cfg.Cooldown {
			return DecisionCooldown
		}
	}
	e.inFlight[alert.Kind] = true
	return DecisionDispatch
}

func (e *Engine) newAlert(kind Kind, title, message string) Alert {
	return Alert{
		ID:        uuid.New().String(),
		Kind:      kind,
		Severity:  severityFor(kind),
		Title:     title,
		Message:   message,
		Timestamp: e.now(),
	}
}

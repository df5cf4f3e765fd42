package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/poolwatch/poolwatch/internal/monitoring"
)

// progressEvery controls the periodic throughput log.
const progressEvery = 100

// dispatchQueueSize bounds alerts waiting on the webhook. Cooldown keeps
// the steady-state volume near zero; the buffer only absorbs the burst of
// distinct kinds becoming eligible at once.
const dispatchQueueSize = 8

// LineSource produces raw log lines until the context is cancelled.
// A non-nil return means the stream is permanently inaccessible.
type LineSource interface {
	Run(ctx context.Context, emit func(line string)) error
}

// Runtime owns the read->parse->track->evaluate->dispatch loop.
//
// Ingestion is single-goroutine so outcomes hit both trackers in stream
// order. Webhook delivery runs on its own goroutine behind a bounded
// queue, so a slow sink never stalls ingestion.
type Runtime struct {
	source   LineSource
	parser   *Parser
	window   *Window
	pools    *PoolTracker
	engine   *Engine
	notifier Notifier
	recorder Recorder
	metrics  *monitoring.MetricsCollector

	startedAt time.Time
	lineCount int64

	dispatch chan Alert
	wg       sync.WaitGroup
}

// RuntimeOptions collects the runtime's collaborators.
type RuntimeOptions struct {
	Source   LineSource
	Parser   *Parser
	Window   *Window
	Pools    *PoolTracker
	Engine   *Engine
	Notifier Notifier
	Recorder Recorder // optional
	Metrics  *monitoring.MetricsCollector
}

// NewRuntime assembles a watcher runtime.
func NewRuntime(opts RuntimeOptions) *Runtime {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	return &Runtime{
		startedAt: time.Now(),
		source:    opts.Source,
		parser:    opts.Parser,
		window:    opts.Window,
		pools:     opts.Pools,
		engine:    opts.Engine,
		notifier:  opts.Notifier,
		recorder:  opts.Recorder,
		metrics:   metrics,
		dispatch:  make(chan Alert, dispatchQueueSize),
	}
}

// Run emits the startup alert and processes the stream until ctx is
// cancelled (returns nil) or the stream becomes permanently inaccessible
// (returns the fatal error). In-flight work is drained before returning.
func (r *Runtime) Run(ctx context.Context) error {
	r.wg.Add(1)
	go r.dispatchLoop()

	if alert, decision := r.engine.EvaluateStartup(r.pools.Current()); decision == DecisionDispatch {
		r.enqueue(alert)
	} else {
		r.logSuppressed(alert, decision)
	}

	err := r.source.Run(ctx, r.processLine)

	close(r.dispatch)
	r.wg.Wait()
	return err
}

// processLine runs the full pipeline for one raw log line. Order matters:
// window ingest, pool observation, then error-rate evaluation before
// failover evaluation.
func (r *Runtime) processLine(line string) {
	r.metrics.RecordLine()
	r.lineCount++

	outcome, err := r.parser.Parse(line)
	if err != nil {
		if errors.Is(err, ErrMalformedLine) {
			r.metrics.RecordMalformed()
			log.Debug().Err(err).Msg("skipping malformed log line")
			return
		}
		log.Warn().Err(err).Msg("unexpected parse failure, skipping line")
		return
	}
	r.metrics.RecordParsed()

	r.window.Ingest(outcome)
	snap := r.window.Snapshot()
	failover, failedOver := r.pools.Observe(outcome)

	if outcome.IsError {
		log.Debug().
			Int("status", outcome.Status).
			Str("upstream", outcome.UpstreamAddr).
			Msg("error response observed")
	}
	if r.lineCount%progressEvery == 0 {
		log.Debug().
			Int64("processed", r.lineCount).
			Str("pool", r.pools.Current()).
			Int("window_length", snap.Length).
			Float64("error_rate", snap.ErrorRate).
			Msg("progress")
	}

	if alert, decision, ok := r.engine.EvaluateErrorRate(snap, r.pools.Current(), r.window.Capacity()); ok {
		r.handleDecision(alert, decision)
	}
	if failedOver {
		log.Warn().
			Str("previous", failover.Previous).
			Str("current", failover.Current).
			Msg("failover detected")
		alert, decision := r.engine.EvaluateFailover(failover)
		r.handleDecision(alert, decision)
	}
}

func (r *Runtime) handleDecision(alert Alert, decision Decision) {
	if decision == DecisionDispatch {
		r.enqueue(alert)
		return
	}
	r.logSuppressed(alert, decision)
}

// enqueue hands an alert to the dispatch goroutine. A full queue is treated
// as a failed delivery: the alert is dropped, never delayed, and the kind's
// cooldown is not consumed.
func (r *Runtime) enqueue(alert Alert) {
	select {
	case r.dispatch <- alert:
	default:
		r.engine.DeliveryFailed(alert.Kind)
		r.metrics.RecordDeliveryFailure()
		log.Error().
			Str("kind", string(alert.Kind)).
			Msg("dispatch queue full, dropping alert")
	}
}

func (r *Runtime) logSuppressed(alert Alert, decision Decision) {
	r.metrics.RecordSuppressed()
	log.Info().
		Str("kind", string(alert.Kind)).
		Str("decision", string(decision)).
		Msg("alert suppressed")
}

// dispatchLoop delivers queued alerts one at a time. It uses a background
// context so an alert already in flight completes during shutdown; the
// notifier's own timeout bounds how long that can take.
func (r *Runtime) dispatchLoop() {
	defer r.wg.Done()

	for alert := range r.dispatch {
		err := r.notifier.Send(context.Background(), alert)
		if err != nil {
			r.engine.DeliveryFailed(alert.Kind)
			r.metrics.RecordDeliveryFailure()
			log.Error().
				Err(err).
				Str("kind", string(alert.Kind)).
				Str("alert_id", alert.ID).
				Msg("alert delivery failed")
		} else {
			r.engine.Delivered(alert.Kind, time.Now())
			r.metrics.RecordDispatched()
			log.Info().
				Str("kind", string(alert.Kind)).
				Str("severity", string(alert.Severity)).
				Str("alert_id", alert.ID).
				Msg("alert delivered")
		}

		r.record(alert, err)
	}
}

func (r *Runtime) record(alert Alert, deliveryErr error) {
	if r.recorder == nil {
		return
	}
	errMsg := ""
	if deliveryErr != nil {
		errMsg = deliveryErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.recorder.Record(ctx, alert, deliveryErr == nil, errMsg); err != nil {
		log.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to record alert history")
	}
}

// Status reports the runtime's current state for the liveness endpoint.
func (r *Runtime) Status() map[string]any {
	snap := r.window.Snapshot()
	lastRecord := ""
	if seen := r.pools.LastSeen(); !seen.IsZero() {
		lastRecord = seen.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"status":         "ok",
		"uptime_sec":     int64(time.Since(r.startedAt).Seconds()),
		"active_pool":    r.pools.Current(),
		"last_record_at": lastRecord,
		"window": map[string]any{
			"length":      snap.Length,
			"error_count": snap.ErrorCount,
			"error_rate":  snap.ErrorRate,
		},
		"counters": r.metrics.Stats(),
	}
}

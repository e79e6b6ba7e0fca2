// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts what a pipeline run did and pushes the result to
// a Prometheus Pushgateway. Each run has its own registry.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	namespace  = "milestone_engine"
	defaultJob = "milestone-engine"
)

// Run holds the metrics of one pipeline run.
type Run struct {
	registry *prometheus.Registry
	started  time.Time

	Items          prometheus.Counter
	Events         *prometheus.CounterVec
	Nominated      prometheus.Counter
	Promoted       prometheus.Counter
	SignalFailures *prometheus.CounterVec
	Tokens         *prometheus.CounterVec

	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewRun registers a fresh set of metrics for command.
func NewRun(command string) *Run {
	labels := prometheus.Labels{"command": command}
	r := &Run{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),
		Items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_processed_total",
			Help: "Newsletter items handed to the extractor", ConstLabels: labels,
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Candidate events by outcome", ConstLabels: labels,
		}, []string{"outcome"}),
		Nominated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_nominated_total",
			Help: "Events nominated as significant", ConstLabels: labels,
		}),
		Promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_promoted_total",
			Help: "Nominees promoted to high significance", ConstLabels: labels,
		}),
		SignalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_failures_total",
			Help: "Corroboration readings that failed", ConstLabels: labels,
		}, []string{"source"}),
		Tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total",
			Help: "LLM tokens consumed", ConstLabels: labels,
		}, []string{"direction"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help: "Wall time of the run", ConstLabels: labels,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time the run finished without error", ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.Items, r.Events, r.Nominated, r.Promoted,
		r.SignalFailures, r.Tokens, r.duration, r.lastSuccess)
	return r
}

// Event outcomes.
const (
	OutcomeExtracted  = "extracted"
	OutcomeSkipped    = "skipped"
	OutcomeMerged     = "merged"
	OutcomeDuplicate  = "duplicate"
	OutcomeOutOfRange = "out_of_range"
	OutcomeInserted   = "inserted"
)

// AddEvents adds n to the outcome counter.
func (r *Run) AddEvents(outcome string, n int) {
	r.Events.WithLabelValues(outcome).Add(float64(n))
}

// AddTokens records LLM usage.
func (r *Run) AddTokens(input, output int64) {
	r.Tokens.WithLabelValues("input").Add(float64(input))
	r.Tokens.WithLabelValues("output").Add(float64(output))
}

// Finish records duration and, when err is nil, the success timestamp.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.duration.Set(now.Sub(r.started).Seconds())
	if err == nil {
		r.lastSuccess.Set(float64(now.Unix()))
	}
}

// Gatherer exposes the registry.
func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Push sends the run's metrics to cfg.PushgatewayURL. It is a no-op when
// no gateway is configured.
func (r *Run) Push(ctx context.Context, cfg types.MetricsConfig) error {
	if cfg.PushgatewayURL == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = defaultJob
	}
	if err := push.New(cfg.PushgatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return eris.Wrap(err, "pushing metrics")
	}
	return nil
}

// Package metrics exposes per-run gauges and pushes them to a Prometheus
// Pushgateway, since a one-shot run does not live long enough to be scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

// Options configure the recorder.
type Options struct {
	PushgatewayURL string
	Job            string
	Wallet         string
}

// RunSample is what a finished run reports.
type RunSample struct {
	StartedAt    time.Time
	Duration     time.Duration
	Rows         int
	Skipped      int
	Candidates   int
	Qualifying   int
	Status       string
	AlertOutcome string
}

// Recorder owns a private registry so repeated runs in one process never
// collide with the default registerer.
type Recorder struct {
	opts     Options
	registry *prometheus.Registry
	logger   zerolog.Logger

	lastRun    prometheus.Gauge
	duration   prometheus.Gauge
	rows       prometheus.Gauge
	skipped    prometheus.Gauge
	candidates prometheus.Gauge
	qualifying prometheus.Gauge
	runs       *prometheus.CounterVec
	alerts     *prometheus.CounterVec
}

// NewRecorder builds the metric set.
func NewRecorder(opts Options, logger zerolog.Logger) *Recorder {
	if opts.Job == "" {
		opts.Job = "hlwatch"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		opts:     opts,
		registry: reg,
		logger:   logger.With().Str("component", "metrics").Logger(),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlwatch_last_run_timestamp_seconds",
			Help: "Unix time the last watch run started",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlwatch_last_run_duration_seconds",
			Help: "Wall time of the last watch run",
		}),
		rows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlwatch_last_run_rows",
			Help: "Table rows acquired by the last run",
		}),
		skipped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlwatch_last_run_rows_skipped",
			Help: "Rows the last run could not normalise",
		}),
		candidates: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlwatch_last_run_candidates",
			Help: "Events inside the alert window, before action filtering",
		}),
		qualifying: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlwatch_last_run_qualifying",
			Help: "Qualifying trades found by the last run",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlwatch_runs_total",
			Help: "Watch runs by status",
		}, []string{"status"}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlwatch_alerts_total",
			Help: "Alert dispatches by outcome",
		}, []string{"outcome"}),
	}
}

// Observe records a finished run.
func (r *Recorder) Observe(s RunSample) {
	r.lastRun.Set(float64(s.StartedAt.Unix()))
	r.duration.Set(s.Duration.Seconds())
	r.rows.Set(float64(s.Rows))
	r.skipped.Set(float64(s.Skipped))
	r.candidates.Set(float64(s.Candidates))
	r.qualifying.Set(float64(s.Qualifying))
	if s.Status != "" {
		r.runs.WithLabelValues(s.Status).Inc()
	}
	if s.AlertOutcome != "" {
		r.alerts.WithLabelValues(s.AlertOutcome).Inc()
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Enabled reports whether a Pushgateway is configured.
func (r *Recorder) Enabled() bool {
	return r != nil && r.opts.PushgatewayURL != ""
}

// Push sends the current metric set to the Pushgateway. It is a no-op when
// no gateway is configured.
func (r *Recorder) Push(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	pusher := push.New(r.opts.PushgatewayURL, r.opts.Job).Gatherer(r.registry)
	if r.opts.Wallet != "" {
		pusher = pusher.Grouping("wallet", r.opts.Wallet)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	r.logger.Debug().Str("gateway", r.opts.PushgatewayURL).Msg("metrics pushed")
	return nil
}

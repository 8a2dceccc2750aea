// Package metrics records run outcomes as Prometheus gauges and pushes them to a Pushgateway.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/cra-hub/cra-sync/internal/events"
)

// GroupingLabel is the Pushgateway grouping key that separates tasks under one job.
const GroupingLabel = "task"

const defaultPushTimeout = 10 * time.Second

// Recorder holds the gauges describing a single run.
type Recorder struct {
	reg      *prometheus.Registry
	lastRun  prometheus.Gauge
	duration prometheus.Gauge
	success  prometheus.Gauge
	units    *prometheus.GaugeVec
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cra_sync_last_run_timestamp_seconds",
			Help: "Unix time the last run completed.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cra_sync_last_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cra_sync_last_run_success",
			Help: "1 if the last run completed without a fatal error.",
		}),
		units: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cra_sync_last_run_units",
			Help: "Units handled by the last run by outcome.",
		}, []string{"status"}),
	}

	r.reg.MustRegister(r.lastRun, r.duration, r.success, r.units)
	return r
}

// RunComplete records e. It implements events.Sink.
func (r *Recorder) RunComplete(e events.RunCompleteEvent) {
	r.lastRun.Set(float64(e.Timestamp.Unix()))
	r.duration.Set(e.Duration.Seconds())
	if e.OK() {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
	r.units.WithLabelValues("total").Set(float64(e.Units))
	r.units.WithLabelValues("succeeded").Set(float64(e.Succeeded))
	r.units.WithLabelValues("failed").Set(float64(e.Failed))
}

// Gatherer exposes the recorder's registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Config holds Pushgateway settings.
type Config struct {
	URL string
	Job string
}

// Pusher pushes one Recorder per run event.
type Pusher struct {
	cfg     Config
	timeout time.Duration
}

// NewPusher creates a Pusher. An empty URL yields a Pusher that does nothing.
func NewPusher(cfg Config) *Pusher {
	if cfg.Job == "" {
		cfg.Job = "cra-sync"
	}
	return &Pusher{cfg: cfg, timeout: defaultPushTimeout}
}

// Enabled reports whether a Pushgateway URL is configured.
func (p *Pusher) Enabled() bool {
	return p.cfg.URL != ""
}

// Push records e and sends it to the Pushgateway, replacing the previous
// metrics for the same task.
func (p *Pusher) Push(ctx context.Context, e events.RunCompleteEvent) error {
	if !p.Enabled() {
		return nil
	}
	if e.Job == "" {
		return errors.New("run event has no job name")
	}

	rec := NewRecorder()
	rec.RunComplete(e)

	err := push.New(p.cfg.URL, p.cfg.Job).
		Grouping(GroupingLabel, e.Job).
		Gatherer(rec.Gatherer()).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// RunComplete pushes e with a bounded timeout and logs failures. It implements events.Sink.
func (p *Pusher) RunComplete(e events.RunCompleteEvent) {
	if !p.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.Push(ctx, e); err != nil {
		slog.Warn("metrics push failed", "task", e.Job, "error", err)
		return
	}
	slog.Debug("metrics pushed", "task", e.Job, "gateway", p.cfg.URL)
}

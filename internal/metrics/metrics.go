// Package metrics collects per-run counters and pushes them to a Prometheus
// Pushgateway when the run ends. The bot is short-lived, so nothing is scraped.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "tower_bot"

type Recorder struct {
	registry *prometheus.Registry

	itemsTotal     *prometheus.CounterVec
	watermark      *prometheus.GaugeVec
	lastRunSuccess prometheus.Gauge
	runDuration    prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Items handled in this run by stream and outcome",
			},
			[]string{"stream", "outcome"},
		),
		watermark: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watermark",
				Help:      "Watermark of each stream after the run, unix seconds",
			},
			[]string{"stream"},
		),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run authenticated and completed",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
	}
	r.registry.MustRegister(r.itemsTotal, r.watermark, r.lastRunSuccess, r.runDuration)
	return r
}

func (r *Recorder) Item(stream, outcome string) {
	r.itemsTotal.WithLabelValues(stream, outcome).Inc()
}

func (r *Recorder) Watermark(stream string, value int64) {
	r.watermark.WithLabelValues(stream).Set(float64(value))
}

func (r *Recorder) Finish(success bool, elapsed time.Duration) {
	if success {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
	r.runDuration.Set(elapsed.Seconds())
}

// Push replaces the job's metric group on the gateway.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx)
}

// Package metrics exports the outcome of a deployment run to a Prometheus
// Pushgateway. A deploy is a batch job, so nothing is scraped.
package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/yfiag/yfiag-deploy/internal/deploy"
)

const (
	namespace = "yfiag_deploy"

	// JobName is the Pushgateway job label.
	JobName = "yfiag_deploy"
)

// Run holds the metrics of one deployment run.
type Run struct {
	registry *prometheus.Registry

	steps       *prometheus.CounterVec
	stepGas     *prometheus.GaugeVec
	gasUsed     prometheus.Counter
	duration    prometheus.Gauge
	success     prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewRun creates the collectors on a private registry.
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Deployment steps executed, by status.",
		}, []string{"status"}),
		stepGas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "step_gas_used",
			Help:      "Gas used by each confirmed step.",
		}, []string{"step"}),
		gasUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_used_total",
			Help:      "Gas used by all confirmed steps of the run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the run.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "success",
			Help:      "1 if every step was confirmed, 0 otherwise.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last complete run finished.",
		}),
	}

	r.registry.MustRegister(r.steps, r.stepGas, r.gasUsed, r.duration, r.success)
	return r
}

// Observe records a run result.
func (r *Run) Observe(res *deploy.Result) {
	for _, s := range res.Steps {
		r.steps.WithLabelValues(string(s.Status)).Inc()
		if s.Status == deploy.StatusConfirmed {
			r.stepGas.WithLabelValues(s.Name).Set(float64(s.GasUsed))
			r.gasUsed.Add(float64(s.GasUsed))
		}
	}

	if !res.FinishedAt.IsZero() {
		r.duration.Set(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}

	if res.Complete {
		r.success.Set(1)
		// only pushed on success so a failed run keeps the previous value
		_ = r.registry.Register(r.lastSuccess)
		r.lastSuccess.Set(float64(res.FinishedAt.Unix()))
	} else {
		r.success.Set(0)
	}
}

// Gatherer exposes the registry, mainly for tests.
func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Push sends the metrics to a Pushgateway, grouped by chain ID. Metrics the
// run did not produce keep their previous value on the gateway.
func (r *Run) Push(ctx context.Context, url string, chainID uint64) error {
	err := push.New(url, JobName).
		Gatherer(r.registry).
		Grouping("chain_id", strconv.FormatUint(chainID, 10)).
		AddContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

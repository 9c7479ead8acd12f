// Package metrics exports reconcile outcomes in the Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OldStager01/generalscaler/internal/resilience"
	"github.com/OldStager01/generalscaler/pkg/models"
)

const namespace = "generalscaler"

type Metrics struct {
	registry *prometheus.Registry

	decisionsTotal    *prometheus.CounterVec
	desiredReplicas   *prometheus.GaugeVec
	actuatedReplicas  *prometheus.GaugeVec
	metricRatio       *prometheus.GaugeVec
	cooldownRemaining *prometheus.GaugeVec
	reconcileDuration *prometheus.HistogramVec
	circuitState      *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Reconcile decisions by target and outcome.",
		}, []string{"target", "outcome"}),
		desiredReplicas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "desired_replicas",
			Help:      "Replica count chosen by the scaling policy.",
		}, []string{"target"}),
		actuatedReplicas: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actuated_replicas",
			Help:      "Replica count authorized after cooldown and rate limits.",
		}, []string{"target"}),
		metricRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_ratio",
			Help:      "Aggregated metric value divided by its target value.",
		}, []string{"target"}),
		cooldownRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cooldown_remaining_seconds",
			Help:      "Time before the target may be scaled again.",
		}, []string{"target"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent in one reconcile.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_circuit_state",
			Help:      "Metric source circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisionsTotal,
		m.desiredReplicas,
		m.actuatedReplicas,
		m.metricRatio,
		m.cooldownRemaining,
		m.reconcileDuration,
		m.circuitState,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnDecision records one finished reconcile.
func (m *Metrics) OnDecision(_ context.Context, d *models.ScalingDecision, elapsed time.Duration) {
	target := d.Target.Key()

	m.decisionsTotal.WithLabelValues(target, string(d.Outcome())).Inc()
	m.reconcileDuration.WithLabelValues(target).Observe(elapsed.Seconds())

	if d.Failed() && d.CurrentReplicas == 0 {
		return
	}
	m.desiredReplicas.WithLabelValues(target).Set(float64(d.DesiredReplicas))
	m.actuatedReplicas.WithLabelValues(target).Set(float64(d.ActuatedReplicas))
	m.cooldownRemaining.WithLabelValues(target).Set(d.CooldownRemaining.Seconds())
	if d.TargetValue != 0 {
		m.metricRatio.WithLabelValues(target).Set(d.CurrentValue / d.TargetValue)
	}
}

func (m *Metrics) SetCircuitState(source string, state resilience.State) {
	m.circuitState.WithLabelValues(source).Set(float64(state))
}

// Forget drops every series of a target that is no longer managed.
func (m *Metrics) Forget(target models.ScalingTarget) {
	labels := prometheus.Labels{"target": target.Key()}
	m.decisionsTotal.DeletePartialMatch(labels)
	m.desiredReplicas.Delete(labels)
	m.actuatedReplicas.Delete(labels)
	m.metricRatio.Delete(labels)
	m.cooldownRemaining.Delete(labels)
	m.reconcileDuration.Delete(labels)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

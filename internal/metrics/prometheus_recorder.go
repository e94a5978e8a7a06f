package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	sweepDuration    prom.Histogram
	checkDuration    *prom.HistogramVec
	checkResults     *prom.CounterVec
	transitions      *prom.CounterVec
	restartAttempts  *prom.CounterVec
	activeWorkers    prom.Gauge
	fleetKeysPerSec  prom.Gauge
	fleetKeysChecked prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.sweepDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "keyfleet",
			Name:      "health_sweep_duration_seconds",
			Help:      "Duration of full health sweeps across the fleet",
			Buckets:   prom.DefBuckets,
		})
		pr.checkDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "keyfleet",
			Name:      "health_check_duration_seconds",
			Help:      "Duration of individual worker liveness checks",
			Buckets:   prom.DefBuckets,
		}, []string{"worker"})
		pr.checkResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "keyfleet",
			Name:      "health_check_results_total",
			Help:      "Health check outcomes by result",
		}, []string{"result"})
		pr.transitions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "keyfleet",
			Name:      "lifecycle_transitions_total",
			Help:      "Worker lifecycle transitions by target status",
		}, []string{"to"})
		pr.restartAttempts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "keyfleet",
			Name:      "restart_attempts_total",
			Help:      "Restart sweep attempts by outcome",
		}, []string{"result"})
		pr.activeWorkers = prom.NewGauge(prom.GaugeOpts{
			Namespace: "keyfleet",
			Name:      "active_workers",
			Help:      "Number of workers currently running",
		})
		pr.fleetKeysPerSec = prom.NewGauge(prom.GaugeOpts{
			Namespace: "keyfleet",
			Name:      "fleet_keys_per_second",
			Help:      "Summed instantaneous throughput across running workers",
		})
		pr.fleetKeysChecked = prom.NewGauge(prom.GaugeOpts{
			Namespace: "keyfleet",
			Name:      "fleet_keys_checked",
			Help:      "Summed cumulative keys checked across running workers",
		})
		reg.MustRegister(pr.sweepDuration, pr.checkDuration, pr.checkResults, pr.transitions, pr.restartAttempts, pr.activeWorkers, pr.fleetKeysPerSec, pr.fleetKeysChecked)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveSweepDuration(d time.Duration) {
	if p == nil || p.sweepDuration == nil {
		return
	}
	p.sweepDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveCheckDuration(worker string, d time.Duration) {
	if p == nil || p.checkDuration == nil {
		return
	}
	p.checkDuration.WithLabelValues(worker).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCheckResult(result CheckResult) {
	if p == nil || p.checkResults == nil {
		return
	}
	p.checkResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncTransition(to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(to).Inc()
}

func (p *PrometheusRecorder) IncRestartAttempt(success bool) {
	if p == nil || p.restartAttempts == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.restartAttempts.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetActiveWorkers(n int) {
	if p == nil || p.activeWorkers == nil {
		return
	}
	p.activeWorkers.Set(float64(n))
}

func (p *PrometheusRecorder) SetFleetKeysPerSec(v float64) {
	if p == nil || p.fleetKeysPerSec == nil {
		return
	}
	p.fleetKeysPerSec.Set(v)
}

func (p *PrometheusRecorder) SetFleetKeysChecked(v float64) {
	if p == nil || p.fleetKeysChecked == nil {
		return
	}
	p.fleetKeysChecked.Set(v)
}

package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/san-kum/mrsim/internal/dynamo"
)

// Collector exports stepper activity on a private registry. It is an
// engine observer.
type Collector struct {
	registry *prometheus.Registry

	accepted prometheus.Counter
	rejected prometheus.Counter
	dropped  prometheus.Counter
	failures *prometheus.CounterVec

	dt      prometheus.Gauge
	simTime prometheus.Gauge
	errEst  prometheus.Histogram

	mu sync.Mutex
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "mrsim"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.accepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stepper",
		Name:      "accepted_steps_total",
		Help:      "Total number of accepted steps",
	})
	c.rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stepper",
		Name:      "rejected_steps_total",
		Help:      "Total number of rejected trial steps",
	})
	c.dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "constraints",
		Name:      "dropped_rows_total",
		Help:      "Total number of redundant constraint rows dropped",
	})
	c.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "failures_total",
			Help:      "Total number of failed steps by reason",
		},
		[]string{"reason"},
	)
	c.dt = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stepper",
		Name:      "step_size_seconds",
		Help:      "Size of the last accepted step",
	})
	c.simTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "time_seconds",
		Help:      "Simulation time of the last accepted step",
	})
	c.errEst = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stepper",
		Name:      "error_estimate",
		Help:      "Scaled local error estimate of accepted steps",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 7), // 1e-6 to 1
	})

	c.registry.MustRegister(
		c.accepted,
		c.rejected,
		c.dropped,
		c.failures,
		c.dt,
		c.simTime,
		c.errEst,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) OnStep(ev dynamo.StepEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted.Inc()
	c.rejected.Add(float64(ev.Rejections))
	c.dropped.Add(float64(ev.Dropped))
	c.dt.Set(ev.Dt)
	c.simTime.Set(ev.T)
	c.errEst.Observe(ev.ErrorEstimate)
}

// RecordFailure counts a failed step under the sentinel it wraps.
func (c *Collector) RecordFailure(err error) {
	if err == nil {
		return
	}
	c.failures.WithLabelValues(Reason(err)).Inc()
}

// Reason maps an engine error to a short label.
func Reason(err error) string {
	switch {
	case errors.Is(err, dynamo.ErrStepperDivergence):
		return "divergence"
	case errors.Is(err, dynamo.ErrConstraintSingularity):
		return "constraint_singularity"
	case errors.Is(err, dynamo.ErrIterationLimit):
		return "iteration_limit"
	case errors.Is(err, dynamo.ErrContextCanceled):
		return "canceled"
	case errors.Is(err, dynamo.ErrDimensionMismatch):
		return "dimension_mismatch"
	}
	return "other"
}

// Snapshot flattens counters and gauges into name -> value. Histograms
// report their sample count.
func (c *Collector) Snapshot() (map[string]float64, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			out[name] = metricValue(mf.GetType(), m)
		}
	}
	return out, nil
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}

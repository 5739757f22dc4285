package catalog

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	WorkingSet    prometheus.Gauge
	Mutations     *prometheus.CounterVec
	FlushFailures prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		WorkingSet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recipes_working_set",
			Help: "Recipes in the working set",
		}),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipes_mutations_total",
				Help: "Applied recipe mutations",
			},
			[]string{"op"},
		),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipes_flush_failures_total",
			Help: "Failed writes of the working set to the store",
		}),
	}

	reg.MustRegister(m.WorkingSet, m.Mutations, m.FlushFailures)
	return m
}

func (m *Metrics) observe(op string, size int, flushErr error) {
	if m == nil {
		return
	}
	m.WorkingSet.Set(float64(size))
	if op != "" {
		m.Mutations.WithLabelValues(op).Inc()
	}
	if flushErr != nil {
		m.FlushFailures.Inc()
	}
}

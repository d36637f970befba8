package manager

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type cacheMetrics struct {
	loads     *prometheus.CounterVec
	evictions prometheus.Counter
	resident  prometheus.Gauge
	memory    prometheus.Gauge
	inference *prometheus.HistogramVec
}

func newCacheMetrics() *cacheMetrics {
	return &cacheMetrics{
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inferd",
				Subsystem: "cache",
				Name:      "loads_total",
				Help:      "Model loads by result",
			},
			[]string{"result"},
		),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Models evicted by the LRU policy",
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "cache",
			Name:      "resident_models",
			Help:      "Models currently resident",
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "cache",
			Name:      "memory_bytes",
			Help:      "Estimated memory held by resident models",
		}),
		inference: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "inferd",
				Name:      "inference_duration_seconds",
				Help:      "Duration of successful predictions",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"model"},
		),
	}
}

// register adds the collectors to reg. Collectors already registered by an
// earlier manager are reused so several managers can share one registry.
func (cm *cacheMetrics) register(reg prometheus.Registerer) {
	cm.loads = reuse(reg, cm.loads)
	cm.evictions = reuse(reg, cm.evictions)
	cm.resident = reuse(reg, cm.resident)
	cm.memory = reuse(reg, cm.memory)
	cm.inference = reuse(reg, cm.inference)
}

func reuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

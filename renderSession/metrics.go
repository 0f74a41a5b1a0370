package renderSession

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are shared by every session built with them. Register them once.
type Metrics struct {
	MaterialLookups *prometheus.CounterVec
	GeometryLookups *prometheus.CounterVec
	Blocks          *prometheus.CounterVec
	BuildDuration   prometheus.Histogram
	Sessions        prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		MaterialLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webschem",
			Name:      "material_lookups_total",
			Help:      "Material cache lookups by result.",
		}, []string{"result"}),
		GeometryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webschem",
			Name:      "geometry_lookups_total",
			Help:      "Geometry cache lookups by result (hit, build, shared).",
		}, []string{"result"}),
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webschem",
			Name:      "blocks_total",
			Help:      "Grid positions processed by outcome.",
		}, []string{"outcome"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webschem",
			Name:      "build_duration_seconds",
			Help:      "Time spent building a whole grid.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webschem",
			Name:      "sessions_active",
			Help:      "Render sessions not yet destroyed.",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.MaterialLookups, m.GeometryLookups, m.Blocks, m.BuildDuration, m.Sessions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

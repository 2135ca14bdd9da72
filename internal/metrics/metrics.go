// Package metrics exposes Prometheus instrumentation for the guardian engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all service-level metrics.
type Collector struct {
	AnalysesTotal     *prometheus.CounterVec
	MessagesTotal     prometheus.Counter
	ThreatEventsTotal *prometheus.CounterVec
	DuressTotal       prometheus.Counter
	EscalationsTotal  prometheus.Counter
	ActiveAlerts      prometheus.Gauge
	AnalysisDuration  prometheus.Histogram
}

// NewCollector registers all metrics against the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_analyses_total",
			Help: "URL analyses performed, by final risk level",
		}, []string{"risk_level"}),
		MessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "guardian_messages_total",
			Help: "Messages processed by the orchestrator",
		}),
		ThreatEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_threat_events_total",
			Help: "Threat events recorded, by emergency level",
		}, []string{"emergency_level"}),
		DuressTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "guardian_duress_detections_total",
			Help: "Messages flagged as possible duress",
		}),
		EscalationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "guardian_family_escalations_total",
			Help: "Alerts escalated to family members",
		}),
		ActiveAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "guardian_active_alerts",
			Help: "Alerts currently live (not expired, not acknowledged)",
		}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardian_analysis_duration_seconds",
			Help:    "End-to-end URL analysis latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

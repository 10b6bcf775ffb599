package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
	"github.com/manlikestiffler/smart-granary-system-v1/internal/services"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	readingsIngested   *prometheus.CounterVec
	readingsRejected   prometheus.Counter
	readingsEvicted    prometheus.Counter
	alertsRaised       *prometheus.CounterVec
	alertsResolved     prometheus.Counter
	alertsAcknowledged prometheus.Counter
	ingestLatency      prometheus.Histogram

	reg prometheus.Registerer
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_readings_ingested_total",
			Help: "Readings accepted by the store, by overall status.",
		}, []string{"status"}),
		readingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_readings_rejected_total",
			Help: "Readings refused because their ID did not increase.",
		}),
		readingsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_readings_evicted_total",
			Help: "Readings dropped from memory by retention.",
		}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_alerts_raised_total",
			Help: "Alerts opened or escalated, by severity.",
		}, []string{"severity"}),
		alertsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_alerts_resolved_total",
			Help: "Alerts resolved by a normal reading.",
		}),
		alertsAcknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_alerts_acknowledged_total",
			Help: "Alerts acknowledged by an operator.",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "granary_ingest_latency_seconds",
			Help:    "Time from store append to the end of alert projection.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		reg: reg,
	}

	reg.MustRegister(
		m.readingsIngested,
		m.readingsRejected,
		m.readingsEvicted,
		m.alertsRaised,
		m.alertsResolved,
		m.alertsAcknowledged,
		m.ingestLatency,
	)
	return m
}

// TrackGauges exposes the store size, open alert count and connected dashboard
// count as gauges read at scrape time. Nil functions are skipped.
func (m *Metrics) TrackGauges(storeLen, openAlerts, clients func() int) {
	gauges := []struct {
		name, help string
		fn         func() int
	}{
		{"granary_store_readings", "Readings currently held in memory.", storeLen},
		{"granary_alerts_open", "Alerts that are active or acknowledged.", openAlerts},
		{"granary_ws_clients", "Connected WebSocket dashboards.", clients},
	}
	for _, g := range gauges {
		if g.fn == nil {
			continue
		}
		fn := g.fn
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}, func() float64 { return float64(fn()) }))
	}
}

// ReadingEvicted counts one reading dropped by retention
func (m *Metrics) ReadingEvicted(models.Reading) {
	m.readingsEvicted.Inc()
}

// Consume records an ingestion event
func (m *Metrics) Consume(_ context.Context, ev services.Event) error {
	switch ev.Kind {
	case services.EventRejected:
		m.readingsRejected.Inc()
		return nil
	case services.EventReading:
		m.readingsIngested.WithLabelValues(string(ev.Reading.Overall())).Inc()
		m.ingestLatency.Observe(ev.Took.Seconds())
	}

	for _, a := range ev.Raised {
		m.alertsRaised.WithLabelValues(string(a.Severity)).Inc()
	}
	for _, a := range ev.Updated {
		switch a.State {
		case models.AlertResolved:
			m.alertsResolved.Inc()
		case models.AlertAcknowledged:
			m.alertsAcknowledged.Inc()
		}
	}
	return nil
}

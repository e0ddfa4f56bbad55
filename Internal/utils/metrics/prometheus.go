package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the desk's Prometheus collectors on its own registry.
type Recorder struct {
	registry     *prometheus.Registry
	ticks        *prometheus.CounterVec
	fires        *prometheus.CounterVec
	orders       *prometheus.CounterVec
	scanSymbols  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	openTriggers prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerdesk_ticks_total",
				Help: "Trigger monitor ticks by outcome",
			},
			[]string{"outcome"},
		),
		fires: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerdesk_trigger_fires_total",
				Help: "Trigger fires by kind (above, below, liquidate)",
			},
			[]string{"kind"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerdesk_orders_total",
				Help: "Orders placed by resulting broker status",
			},
			[]string{"status"},
		),
		scanSymbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triggerdesk_scan_symbols_total",
				Help: "Scanned symbols by result (retained, dropped, failed)",
			},
			[]string{"result"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "triggerdesk_last_price",
				Help: "Last live price seen for a held ticker",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triggerdesk_operation_duration_seconds",
				Help:    "Duration of desk operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		openTriggers: f.NewGauge(prometheus.GaugeOpts{
			Name: "triggerdesk_active_triggers",
			Help: "Active triggers seen on the last tick",
		}),
	}
}

func (r *Recorder) RecordTick(outcome string) {
	r.ticks.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordFire(kind string) {
	r.fires.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordOrder(status string) {
	r.orders.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordScanSymbol(result string) {
	r.scanSymbols.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetActiveTriggers(n int) {
	r.openTriggers.Set(float64(n))
}

// Registry exposes the collectors, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

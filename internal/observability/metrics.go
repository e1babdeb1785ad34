package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsor_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sponsor_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sponsor_in_flight",
		Help: "In-flight HTTP requests",
	})
	InventoryState = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsor_inventory_reads_total",
			Help: "Inventory cache reads by state",
		}, []string{"state"},
	)
	Selections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsor_selections_total",
			Help: "Selection outcomes",
		}, []string{"outcome"},
	)
	Events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsor_events_total",
			Help: "Engagement events by disposition",
		}, []string{"disposition"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, InventoryState, Selections, Events)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}

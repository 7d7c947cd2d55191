package web

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avandermeer/tieout"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tieout",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tieout",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	exceptionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tieout",
			Name:      "reconciliation_exceptions",
			Help:      "Reconciliation exceptions in the last run, by type",
		},
		[]string{"type"},
	)
	failedChecksGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tieout",
			Name:      "failed_checks",
			Help:      "Named checks that failed in the last run",
		},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// observeRun publishes the gauge values of a completed pipeline run.
func observeRun(results *tieout.Results) {
	exceptionsGauge.Reset()
	for typ, n := range results.Bank.ExceptionCounts() {
		exceptionsGauge.WithLabelValues(string(typ)).Set(float64(n))
	}

	failed := 0
	for _, check := range results.Summary.Checks.Named() {
		if !check.Passed {
			failed++
		}
	}
	failedChecksGauge.Set(float64(failed))
}

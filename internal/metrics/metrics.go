package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"earnings/internal/logger"
)

var (
	BrokerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "earnings_broker_requests_total", Help: "Broker API calls by method and outcome"},
		[]string{"method", "status"},
	)
	BrokerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "earnings_broker_request_duration_seconds", Help: "Broker API call latency", Buckets: prometheus.DefBuckets},
		[]string{"method"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "earnings_orders_total", Help: "Orders sent to the broker"},
		[]string{"action", "status"},
	)
	ScannedEarnings = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "earnings_scanned_reports", Help: "Reports returned by the last earnings scan"},
	)
	StranglesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "earnings_strangles_total", Help: "Strangle searches by outcome"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(BrokerRequestsTotal, BrokerRequestDuration, OrdersTotal, ScannedEarnings, StranglesTotal)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveBrokerCall records one broker call that started at start.
func ObserveBrokerCall(method string, start time.Time, err error) {
	BrokerRequestsTotal.WithLabelValues(method, status(err)).Inc()
	BrokerRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func ObserveOrder(action string, err error) {
	OrdersTotal.WithLabelValues(action, status(err)).Inc()
}

const (
	StrangleFound = "found"
	StrangleNone  = "none"
	StrangleError = "error"
)

// ObserveStrangle counts one strangle search by result.
func ObserveStrangle(result string) {
	StranglesTotal.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr in the background.
func Serve(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server stopped", err, "addr", addr)
		}
	}()
	logger.Info(ctx, "Serving metrics", "addr", addr)
	return srv
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Signal fetch outcomes used as the status label.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusBlocked = "blocked"
)

var (
	SignalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paaplan_signal_requests_total",
			Help: "Total number of signal source requests by outcome",
		},
		[]string{"source", "status"},
	)

	SignalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paaplan_signal_duration_seconds",
			Help:    "Duration of signal source requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	PagesScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paaplan_pages_scored_total",
			Help: "Total number of keyword/location pages scored, by tier",
		},
		[]string{"tier"},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paaplan_publish_total",
			Help: "Total number of page publish attempts by outcome",
		},
		[]string{"status"},
	)
)

// RecordSignal updates the request counter and latency histogram for one
// call to a signal source.
func RecordSignal(source, status string, d time.Duration) {
	SignalRequestsTotal.WithLabelValues(source, status).Inc()
	SignalDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordScored counts a scored page under its tier number.
func RecordScored(tier int) {
	PagesScoredTotal.WithLabelValues(strconv.Itoa(tier)).Inc()
}

// RecordPublish counts a publish attempt.
func RecordPublish(ok bool) {
	status := StatusOK
	if !ok {
		status = StatusError
	}
	PublishTotal.WithLabelValues(status).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

package prometheus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/feliven/qrpulse/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
	defaultPort       = 9090
)

var (
	// ScansRecorded counts scan events persisted by the consumer.
	ScansRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrpulse_scans_recorded_total",
		Help: "Scan events stored in the event table.",
	})

	// AnalyticsRequests counts aggregation calls by outcome.
	AnalyticsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrpulse_analytics_requests_total",
		Help: "Analytics aggregation requests.",
	}, []string{"outcome"})

	// Redirects counts public redirect hits by result.
	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrpulse_redirects_total",
		Help: "Public /r/:code resolutions.",
	}, []string{"result"})
)

// NewServer builds a basic HTTP server that exposes /metrics for
// Prometheus scraping.
func NewServer(cfg config.PrometheusConfig) *http.Server {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
}

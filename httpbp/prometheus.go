package httpbp

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/latencylab/latencysvc/prometheusbp"
)

const (
	methodLabel     = "http_method"
	successLabel    = "http_success"
	codeLabel       = "http_response_code"
	clientNameLabel = "http_client_name"
	endpointLabel   = "http_endpoint"
)

var (
	serverLabels = []string{
		methodLabel,
		successLabel,
		endpointLabel,
	}

	serverLatency = promauto.With(prometheusbp.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_latency_seconds",
		Help:    "HTTP server request latencies",
		Buckets: prometheusbp.DefaultLatencyBuckets,
	}, serverLabels)

	serverTotalRequestLabels = []string{
		methodLabel,
		successLabel,
		codeLabel,
		endpointLabel,
	}

	serverTotalRequests = promauto.With(prometheusbp.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_requests_total",
		Help: "Total request count",
	}, serverTotalRequestLabels)

	serverActiveRequestsLabels = []string{
		methodLabel,
		endpointLabel,
	}

	serverActiveRequests = promauto.With(prometheusbp.Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_server_active_requests",
		Help: "The number of in-flight requests being handled by the service",
	}, serverActiveRequestsLabels)
)

var (
	clientLatencyLabels = []string{
		methodLabel,
		endpointLabel,
		successLabel,
		clientNameLabel,
	}

	clientLatencyDistribution = promauto.With(prometheusbp.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_client_latency_seconds",
		Help:    "HTTP client request latencies",
		Buckets: prometheusbp.DefaultLatencyBuckets,
	}, clientLatencyLabels)

	clientTotalRequestLabels = []string{
		methodLabel,
		endpointLabel,
		successLabel,
		codeLabel,
		clientNameLabel,
	}

	clientTotalRequests = promauto.With(prometheusbp.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_requests_total",
		Help: "Total request count",
	}, clientTotalRequestLabels)

	clientActiveRequestsLabels = []string{
		methodLabel,
		endpointLabel,
		clientNameLabel,
	}

	clientActiveRequests = promauto.With(prometheusbp.Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_client_active_requests",
		Help: "The number of in-flight requests",
	}, clientActiveRequestsLabels)
)

var (
	panicRecoverLabels = []string{
		methodLabel,
	}

	panicRecoverCounter = promauto.With(prometheusbp.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "httpbp_server_recovered_panics_total",
		Help: "The number of panics recovered from http server handlers",
	}, panicRecoverLabels)
)

const (
	workerPoolBusyName   = "httpbp_server_worker_pool_busy"
	workerPoolQueuedName = "httpbp_server_worker_pool_queued"
)

// workerPoolGauges returns the busy and queued gauges of the worker pool
// guarding the named endpoint, registering them on first use.
func workerPoolGauges(endpoint string) (busy, queued prometheusbp.HighWatermarkGauge) {
	labels := prometheus.Labels{endpointLabel: endpoint}
	busy = registerHighWatermarkGauge(prometheusbp.NewHighWatermarkGauge(
		workerPoolBusyName,
		"The number of requests currently holding a worker",
		labels,
	))
	queued = registerHighWatermarkGauge(prometheusbp.NewHighWatermarkGauge(
		workerPoolQueuedName,
		"The number of requests currently waiting for a worker",
		labels,
	))
	return busy, queued
}

func registerHighWatermarkGauge(g prometheusbp.HighWatermarkGauge) prometheusbp.HighWatermarkGauge {
	if err := prometheusbp.Registry.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheusbp.HighWatermarkGauge); ok {
				return existing
			}
		}
		panic(err)
	}
	return g
}

func successValue(success bool) string {
	return strconv.FormatBool(success)
}

package obs

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Surfaces partition the storefront's routes for metrics.
const (
	SurfaceAPI     = "api"
	SurfaceStream  = "stream"
	SurfaceWebhook = "webhook"
	SurfaceOps     = "ops"
)

var defaultBucketsMS = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// HTTPMetrics groups the Prometheus collectors behind HTTPObs. Render streams
// are counted but kept out of ReqDur: their duration is the client's session.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewHTTPMetrics registers the HTTP collectors on reg, reusing collectors that
// are already registered. An empty namespace defaults to "storefront".
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "storefront"
	}
	if len(buckets) == 0 {
		buckets = defaultBucketsMS
	}
	return &HTTPMetrics{
		ReqTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route, status and surface.",
		}, []string{"method", "route", "status", "surface"})),
		ReqDur: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "Latency of non-stream HTTP requests in milliseconds.",
			Buckets:   buckets,
		}, []string{"method", "route", "surface"})),
		InFlight: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "HTTP requests currently being served, by surface.",
		}, []string{"surface"})),
	}
}

// Surface classifies a route pattern or request path.
func Surface(route string) string {
	switch {
	case strings.HasSuffix(route, "/stream"):
		return SurfaceStream
	case strings.Contains(route, "/webhooks/"):
		return SurfaceWebhook
	case strings.HasPrefix(route, "/health"), route == "/metrics":
		return SurfaceOps
	default:
		return SurfaceAPI
	}
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries in
// milliseconds into sorted, de-duplicated floats. Invalid or non-positive
// entries are skipped.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	seen := map[float64]bool{}
	var out []float64
	for _, part := range strings.Split(csv, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(fmt.Errorf("register http metric: %w", err))
}

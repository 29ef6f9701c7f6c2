package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/cart"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/cart", "204", obs.SurfaceAPI)))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight.WithLabelValues(obs.SurfaceAPI)))

	again := obs.NewHTTPMetrics("storefront", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestHTTPMetricsKeepStreamsOutOfLatency(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("storefront", nil, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/stream", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/cart/stream"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/cart/stream", "200", obs.SurfaceStream)))
	require.Zero(t, testutil.CollectAndCount(metrics.ReqDur))
}

func TestSurface(t *testing.T) {
	require.Equal(t, obs.SurfaceStream, obs.Surface("/api/v1/cart/stream"))
	require.Equal(t, obs.SurfaceWebhook, obs.Surface("/api/v1/webhooks/payment/{provider}"))
	require.Equal(t, obs.SurfaceOps, obs.Surface("/health/ready"))
	require.Equal(t, obs.SurfaceOps, obs.Surface("/metrics"))
	require.Equal(t, obs.SurfaceAPI, obs.Surface("/api/v1/checkout"))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, obs.ParseBucketsCSV(" "))
	require.Equal(t, []float64{5, 50, 250}, obs.ParseBucketsCSV("250, 5,x,-1,50,5"))
}

func TestStatusRecorderFlushes(t *testing.T) {
	rr := httptest.NewRecorder()
	recorder := obs.NewStatusRecorder(rr)
	var flusher http.Flusher = recorder
	_, _ = recorder.Write([]byte("data: hi\n\n"))
	flusher.Flush()

	require.True(t, rr.Flushed)
	require.Equal(t, int64(10), recorder.BytesWritten())
	require.Equal(t, http.StatusOK, recorder.Status())
	require.Same(t, rr, recorder.Unwrap())
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "debug")
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/checkout"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "/api/v1/checkout", entry["route"])
	require.Equal(t, float64(http.StatusConflict), entry["status"])
	require.Equal(t, "http_request", entry["message"])
}

func TestRequestLoggerIncludesHandlerTags(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obs.Tag(r.Context(), "checkout_reference", "BOOKS-1700000000000")
		obs.Tag(r.Context(), "ignored", "")
		w.WriteHeader(http.StatusCreated)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "BOOKS-1700000000000", entry["checkout_reference"])
	require.NotContains(t, entry, "ignored")
}

func TestTagOutsideRequestIsNoOp(t *testing.T) {
	ctx := context.Background()
	obs.Tag(ctx, "k", "v")
	require.Empty(t, obs.TagsFromContext(ctx))

	tagged := obs.WithRequestTags(ctx)
	require.Equal(t, tagged, obs.WithRequestTags(tagged))
	obs.Tag(tagged, "b", "2")
	obs.Tag(tagged, "a", "1")
	require.Equal(t, [][2]string{{"a", "1"}, {"b", "2"}}, obs.TagsFromContext(tagged))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "loud")
	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
	cartLogger := obs.Component(logger, "cart")
	cartLogger.Info().Msg("shown")
	require.Contains(t, buf.String(), `"component":"cart"`)
}

func TestDomainMetricsHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("storefront", registry)

	obs.IncCartCommand("add", "changed")
	obs.IncCheckout("sandbox", "started")
	obs.IncPaymentWebhook("paystack", "ok")
	obs.AddRenderSubscribers(1)

	require.Equal(t, float64(1), testutil.ToFloat64(obs.CartCommandsTotal.WithLabelValues("add", "changed")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.CheckoutTotal.WithLabelValues("sandbox", "started")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.PaymentWebhookTotal.WithLabelValues("paystack", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.RenderSubscribers))
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

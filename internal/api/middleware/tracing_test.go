package middleware_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

func tracedRouter(handler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing("traewelling-widget"))
	r.Use(middleware.Recovery(zerolog.New(&bytes.Buffer{})))
	r.Get("/callback", handler)
	r.Get("/v1/widgets/{profile}", handler)
	return r
}

func attributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	sr := setupTestTracer(t)

	router := tracedRouter(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		_, _ = w.Write([]byte("{}"))
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/widgets/7?family=small", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/widgets/{profile}", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	attrs := attributes(spans[0])
	assert.Equal(t, "/v1/widgets/{profile}", attrs["http.route"].AsString())
	assert.Equal(t, "7", attrs["widget.profile"].AsString())
	assert.Equal(t, "family=small", attrs["url.query"].AsString())
	assert.Equal(t, int64(200), attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, int64(2), attrs["http.response.body.size"].AsInt64())
	assert.Contains(t, attrs["request.id"].AsString(), "req_")
}

func TestTracing_RedactsCallbackSecrets(t *testing.T) {
	sr := setupTestTracer(t)

	router := tracedRouter(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=def502&state=8f1c", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	for _, kv := range spans[0].Attributes() {
		assert.NotContains(t, kv.Value.Emit(), "def502", string(kv.Key))
		assert.NotContains(t, kv.Value.Emit(), "8f1c", string(kv.Key))
	}
	assert.Equal(t, "code=REDACTED&state=REDACTED", attributes(spans[0])["url.query"].AsString())
}

func TestTracing_ContinuesPropagatedTrace(t *testing.T) {
	sr := setupTestTracer(t)

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0xf7, 0x65, 0x19, 0x16, 0xcd, 0x43, 0xdd, 0x84, 0x48, 0xeb, 0x21, 0x1c, 0x80, 0x31, 0x9c},
		SpanID:     trace.SpanID{0xb7, 0xad, 0x6b, 0x71, 0x69, 0x20, 0x33, 0x31},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/widgets/0", http.NoBody)
	otel.GetTextMapPropagator().Inject(trace.ContextWithRemoteSpanContext(context.Background(), parent), propagation.HeaderCarrier(req.Header))

	tracedRouter(func(w http.ResponseWriter, _ *http.Request) {}).ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, parent.TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, parent.SpanID(), spans[0].Parent().SpanID())
}

func TestTracing_ServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  codes.Code
	}{
		{
			name:    "client error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			status:  codes.Unset,
		},
		{
			name:    "upstream error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			status:  codes.Error,
		},
		{
			name:    "panic",
			handler: func(http.ResponseWriter, *http.Request) { panic("scheme exploded") },
			status:  codes.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			tracedRouter(tt.handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/widgets/0", http.NoBody))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.status, spans[0].Status().Code)
		})
	}
}

package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	rec := recordSpans(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/orders/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("mail to jeanne@example.com bounced"))
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1, "probes are not traced")
	span := spans[0]
	assert.Equal(t, "GET /api/orders/:id", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	require.NotEmpty(t, span.Events())
	for _, attr := range span.Events()[0].Attributes {
		assert.NotContains(t, attr.Value.Emit(), "jeanne@example.com")
	}
}

func TestStartFiltersAttributes(t *testing.T) {
	rec := recordSpans(t)

	_, span := Start(context.Background(), "outbox.dispatch",
		attribute.Int("outbox.limit", 50),
		attribute.String("recipient_email", "jeanne@example.com"),
	)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	keys := make([]attribute.Key, 0)
	for _, kv := range spans[0].Attributes() {
		keys = append(keys, kv.Key)
	}
	assert.Equal(t, []attribute.Key{"outbox.limit"}, keys)
}

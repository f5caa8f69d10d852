package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys    []string
	events  []EventEnvelope
	headers []map[string]string
	err     error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, routingKey string, msg interface{}, headers map[string]string) error {
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, msg.(EventEnvelope))
	p.headers = append(p.headers, headers)
	return p.err
}

func TestPublishEventUsesConfiguredPublisher(t *testing.T) {
	t.Cleanup(func() { SetPublisher(nil) })

	require.NoError(t, PublishEvent(context.Background(), "chat.message_sent", EventEnvelope{}))

	pub := &recordingPublisher{}
	SetPublisher(pub)
	require.NoError(t, PublishEvent(context.Background(), "chat.message_sent", EventEnvelope{}))
	assert.Equal(t, []string{"chat.message_sent"}, pub.keys)

	before := testutil.ToFloat64(amqpPublishErrorsTotal)
	pub.err = errors.New("channel closed")
	assert.Error(t, PublishEvent(context.Background(), "claims.claimed", EventEnvelope{}))
	assert.Equal(t, before+1, testutil.ToFloat64(amqpPublishErrorsTotal))
}

func TestPublishEventStampsEnvelope(t *testing.T) {
	t.Cleanup(func() { SetPublisher(nil) })
	pub := &recordingPublisher{}
	SetPublisher(pub)

	ctx := WithRequestID(context.Background(), "r1")
	require.NoError(t, PublishEvent(ctx, "claims.claimed", EventEnvelope{EventType: "claims", TeamID: "t1"}))

	require.Len(t, pub.events, 1)
	assert.False(t, pub.events[0].OccurredAt.IsZero())
	assert.Equal(t, map[string]string{"x-request-id": "r1"}, pub.headers[0])
}

func TestEventHeaders(t *testing.T) {
	assert.Empty(t, EventHeaders(context.Background()))
	assert.Equal(t, map[string]string{"x-request-id": "r1"}, EventHeaders(WithRequestID(context.Background(), "r1")))
}

func TestHTTPMetricsMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(HTTPMetricsMiddleware())
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")))
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "collab-service", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

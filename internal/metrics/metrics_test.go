package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RequestSent("order")
	c.RequestSent("order")
	c.RequestCompleted("order", "success", 20*time.Millisecond)
	c.RequestCompleted("order", "rejected", 0)
	c.UnknownCorrelation("orders")
	c.FrameRejected("positions")
	c.LateCompletion("order", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sent.WithLabelValues("order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.completed.WithLabelValues("order", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.completed.WithLabelValues("order", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unknown.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("positions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.late.WithLabelValues("order", "success")))
}

func TestSessionStateIsOneHot(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.SessionState("connecting")
	c.SessionState("connected")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.session.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.session.WithLabelValues("connecting")))
}

func TestTrackPendingAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	require.NoError(t, c.TrackPending("orders", func() float64 { return 3 }))
	assert.Error(t, c.TrackPending("orders", func() float64 { return 1 }), "duplicate family")
	c.HTTPRequest("GET", "/healthz", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `exconnector_pending_requests{family="orders"} 3`), body)
	assert.Contains(t, body, `exconnector_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

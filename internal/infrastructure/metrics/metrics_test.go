package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Rejections.WithLabelValues("RateLimited").Inc()
	m.RegisterGaugeFunc("dedup_entries", "Claimed idempotency keys.", func() float64 { return 3 })

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("RateLimited")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ticketchat_rejections_total{kind="RateLimited"} 1`)
	assert.Contains(t, string(body), "ticketchat_dedup_entries 3")
}

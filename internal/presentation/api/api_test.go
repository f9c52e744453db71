package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/application/chat"
	"github.com/hilthontt/ticketchat/internal/infrastructure/auth"
	"github.com/hilthontt/ticketchat/internal/infrastructure/configs"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/metrics"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
	"github.com/hilthontt/ticketchat/internal/persistence/memory"
	healthHandler "github.com/hilthontt/ticketchat/internal/presentation/handler/health"
	socketHandler "github.com/hilthontt/ticketchat/internal/presentation/handler/socket"
)

func newTestApp(t *testing.T, cfg configs.Config) http.Handler {
	t.Helper()

	logger := logging.NewNopLogger()
	m := metrics.New()
	store := memory.NewStore()
	coordinator := chat.NewCoordinator(chat.Options{
		Verifier: auth.NewJWTVerifier("secret", store, logger),
		Tickets:  store,
		Store:    store,
		Logger:   logger,
		Metrics:  m,
	})
	t.Cleanup(coordinator.Close)

	rl := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 2})
	t.Cleanup(rl.Close)

	app := NewApplication(
		cfg,
		socketHandler.NewHandler(coordinator, ws.NewUpgrader(cfg.HTTP.AllowedOrigins), ws.DefaultClientOptions(), logger),
		healthHandler.NewHandler(coordinator),
		logger,
		rl,
		m,
	)
	return app.Mount()
}

func do(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = "203.0.113.7:51234"
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestUpgradeIsRateLimited(t *testing.T) {
	h := newTestApp(t, configs.Config{})

	// Plain GETs fail the upgrade handshake but still pass the limiter.
	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodGet, "/ws", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := do(h, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health probes are never limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/health", nil).Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	h := newTestApp(t, configs.Config{})

	for _, path := range []string{"/api/health", "/api/healthz", "/api/ready", "/api/live"} {
		rec := do(h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"chat"`, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestApp(t, configs.Config{})

	do(h, http.MethodGet, "/api/health", nil)
	rec := do(h, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ticketchat_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "ticketchat_connections")
}

func TestCors(t *testing.T) {
	cfg := configs.Config{HTTP: configs.HTTPConfig{
		AllowedOrigins: []string{"https://portal.example.com"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}}
	h := newTestApp(t, cfg)

	tests := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{name: "allowed origin", origin: "https://portal.example.com", wantOrigin: "https://portal.example.com"},
		{name: "foreign origin", origin: "https://evil.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodOptions, "/api/health", map[string]string{"Origin": tt.origin})

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

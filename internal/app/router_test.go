package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledroitcheck-service/internal/domain/identity"
	authHandler "ledroitcheck-service/internal/handlers/auth"
	ingresoHandler "ledroitcheck-service/internal/handlers/ingreso"
	jornadaHandler "ledroitcheck-service/internal/handlers/jornada"
	relayHandler "ledroitcheck-service/internal/handlers/relay"
	sessionHandler "ledroitcheck-service/internal/handlers/session"
	systemHandler "ledroitcheck-service/internal/handlers/system"
	wsHandler "ledroitcheck-service/internal/handlers/websocket"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/jwt"
	"ledroitcheck-service/internal/pkg/metrics"
	"ledroitcheck-service/internal/pkg/session"
	"ledroitcheck-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type routerFixture struct {
	engine   *gin.Engine
	sessions *session.Manager
	tokens   *jwt.Manager
}

func newRouterFixture(t *testing.T, health map[string]string) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens := jwt.Build(key, &key.PublicKey, jwt.Config{Issuer: "test", Audience: "test", TTL: time.Hour})

	sessions := session.NewManager(session.NewMemoryBackend(), session.NewMemoryBackend(), nil, session.Config{TTL: time.Hour}, logger)
	t.Cleanup(sessions.Shutdown)

	cookie := middleware.CookieConfig{Name: "ls_session", TTL: time.Hour}
	limiter := middleware.NewRateLimiter(100, 100, time.Minute)
	t.Cleanup(limiter.Stop)
	m := metrics.New()
	hub := websocket.NewHub(tokens.Verifier, sessions, logger)

	h := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(nil, cookie, logger),
		SessionHandler: sessionHandler.NewSessionHandler(sessions, nil, tokens.Generator, cookie, "/index.html", logger),
		IngresoHandler: ingresoHandler.NewIngresoHandler(nil, tokens.Generator, cookie, "", logger),
		RelayHandler:   relayHandler.NewRelayHandler(nil, cookie, logger),
		SystemHandler:  systemHandler.NewSystemHandler(nil),
		JornadaHandler: jornadaHandler.NewJornadaHandler(nil),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, []string{"*"}, "ls_session", logger),
		AuthMiddleware: middleware.NewAuthMiddleware(tokens.Verifier, sessions, "ls_session"),
		RateLimiter:    limiter,
		Metrics:        m,
		Health: func(context.Context) map[string]string {
			return health
		},
	}

	engine := gin.New()
	engine.Use(middleware.MetricsMiddleware(m), middleware.RecoveryMiddleware(logger))
	SetupRouter(engine, []string{"*"}, h)
	return &routerFixture{engine: engine, sessions: sessions, tokens: tokens}
}

func (f *routerFixture) login(t *testing.T, roles ...string) string {
	t.Helper()
	sid, err := f.sessions.Establish(context.Background(), &identity.Record{
		Initials:  "JP",
		Companies: []identity.Company{{Name: "ACME", CompanyActive: true, UserActive: true, Roles: roles}},
	})
	require.NoError(t, err)
	token, err := f.tokens.Generator.GenerateSessionToken(sid, "JP")
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.engine.ServeHTTP(w, req)
	return w
}

func TestRouter_PreflightPerSurface(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodOptions, "/api/v1/session", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	w = f.do(http.MethodOptions, "/ingreso-derivado", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, w.Header().Get("Access-Control-Max-Age"))
}

func TestRouter_SessionRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/session", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/v1/session", f.login(t, "A2"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"iniciales":"JP"`)
}

func TestRouter_RelayNeedsCapability(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodPost, "/api/v1/relay", f.login(t, "A4"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"capability":"relays"`)
}

func TestRouter_AdminStatsNeedConfigure(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/admin/ws/stats", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/v1/admin/ws/stats", f.login(t, "A3"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"capability":"configure"`)

	w = f.do(http.MethodGet, "/api/v1/admin/ws/stats", f.login(t, "A2"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "routed_events")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	ok := newRouterFixture(t, map[string]string{"postgres": "ok", "redis": "ok"})
	w := ok.do(http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := newRouterFixture(t, map[string]string{"postgres": "ok", "redis": "unavailable"})
	w = degraded.do(http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")

	w = degraded.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/api/v1/health",status="503"} 1`)
}

package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/system"
	"ledroitcheck-service/internal/middleware"
	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/session"
	relayUsecase "ledroitcheck-service/internal/service/relay"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lastLogins map[string]*handoff.LastLogin

func (l lastLogins) Lookup(_ context.Context, initials string) (*handoff.LastLogin, error) {
	if ll, ok := l[initials]; ok {
		return ll, nil
	}
	return nil, xerrors.ErrNoLastLogin
}

type systems map[string]*system.SecondarySystem

func (s systems) Get(_ context.Context, id string) (*system.SecondarySystem, error) {
	if sys, ok := s[id]; ok {
		return sys, nil
	}
	return nil, xerrors.ErrSystemNotFound
}

type fixture struct {
	router   *gin.Engine
	sessions *session.Manager
	sid      string
}

func newFixture(t *testing.T, initials string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := session.NewManager(session.NewMemoryBackend(), session.NewMemoryBackend(), nil, session.Config{TTL: time.Hour}, zap.NewNop())
	t.Cleanup(sessions.Shutdown)
	sid, err := sessions.Establish(context.Background(), &identity.Record{
		Initials:  initials,
		Companies: []identity.Company{{Name: "ACME", CompanyActive: true, UserActive: true, Roles: []string{"A3"}}},
	})
	require.NoError(t, err)

	svc := relayUsecase.NewService(
		sessions,
		lastLogins{"JP": {Initials: "JP", Response: json.RawMessage(`{"success":true,"data":{"iniciales":"JP"}}`)}},
		systems{
			"partner": {ID: "partner", URL: "https://partner.example/ingreso-derivado.html", OpenInNewWindow: true,
				Permissions: []system.Permission{{Company: "ACME", Role: "A4"}}},
			"boss": {ID: "boss", URL: "https://boss.example/", Permissions: []system.Permission{{Company: "ACME", Role: "A1"}}},
		},
		nil, zap.NewNop(),
	)
	h := NewRelayHandler(svc, middleware.CookieConfig{Name: "ls_session", TTL: time.Hour}, zap.NewNop())

	r := gin.New()
	g := r.Group("/api/v1/relay", func(c *gin.Context) {
		c.Set(middleware.CtxSessionID, sid)
		c.Next()
	})
	g.POST("", h.Send)
	g.POST("/systems/:id", h.SendToSystem)
	return &fixture{router: r, sessions: sessions, sid: sid}
}

func (f *fixture) post(path, body, accept string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/relay"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestRelay_RendersAutoSubmitFormAndEndsSession(t *testing.T) {
	f := newFixture(t, "JP")

	w := f.post("", `{"url":"https://partner.example/ingreso-derivado.html","sistemaOrigen":"LEDROITCHECK","empresaSolicitante":"ACME"}`, "text/html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, `action="https://partner.example/ingreso-derivado"`)
	assert.Contains(t, body, `target="_self"`)
	assert.Contains(t, body, `name="respuestaLMaster"`)
	assert.Contains(t, body, "empresaSolicitante")
	assert.Contains(t, body, ".submit()")

	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
	rec, err := f.sessions.Read(context.Background(), f.sid)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRelay_JSONClientsGetTheHandoff(t *testing.T) {
	f := newFixture(t, "JP")

	w := f.post("/systems/partner", "", "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data handoff.Handoff `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "_blank", body.Data.Target)
	assert.False(t, body.Data.SessionEnded)
	assert.Empty(t, w.Header().Get("Set-Cookie"))

	rec, err := f.sessions.Read(context.Background(), f.sid)
	require.NoError(t, err)
	assert.NotNil(t, rec, "a new-window relay keeps the local session")
}

func TestRelay_Failures(t *testing.T) {
	f := newFixture(t, "JP")

	w := f.post("", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.post("/systems/boss", "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.post("/systems/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "system_not_found")

	unknown := newFixture(t, "ZZ")
	w = unknown.post("", `{"url":"https://partner.example/"}`, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no_last_login")
}

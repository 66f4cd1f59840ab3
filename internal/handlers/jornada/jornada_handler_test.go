package jornada

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/events"
	jornadaUsecase "ledroitcheck-service/internal/service/jornada"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(rec *identity.Record) (*gin.Engine, *jornadaUsecase.MemoryStore) {
	gin.SetMode(gin.TestMode)
	store := jornadaUsecase.NewMemoryStore(time.UTC)
	bus := events.NewBus(zap.NewNop())
	svc := jornadaUsecase.NewService(store, bus, bus, nil, time.Second, zap.NewNop())
	h := NewJornadaHandler(svc)

	r := gin.New()
	g := r.Group("/api/v1/jornadas", func(c *gin.Context) {
		c.Set(middleware.CtxSession, rec)
		c.Next()
	})
	g.POST("/open", h.Open)
	g.POST("/close", h.Close)
	g.GET("/open", h.GetOpen)
	g.GET("/last", h.GetLast)
	return r, store
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/api/v1/jornadas"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func record(selected string) *identity.Record {
	rec := &identity.Record{
		Initials: "jp",
		Companies: []identity.Company{
			{Name: "ACME", CompanyActive: true, UserActive: true, Roles: []string{"A4"}},
			{Name: "GLOBEX", CompanyActive: true, UserActive: true, Roles: []string{"A4"}},
		},
	}
	if selected != "" {
		rec.SelectedCompany = &identity.SelectedCompany{Name: selected}
	}
	return rec
}

func TestJornada_OpenUsesSelectedCompanyAndCloses(t *testing.T) {
	r, store := newRouter(record("GLOBEX"))

	w, body := do(r, http.MethodPost, "/open", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	opened := body["data"].(map[string]any)
	assert.Equal(t, "GLOBEX", opened["empresaNombre"])
	assert.Equal(t, "JP", opened["iniciales"])

	w, body = do(r, http.MethodGet, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["open"])

	w, body = do(r, http.MethodPost, "/open", `{"empresaNombre":"ACME"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_open", body["reason"])

	w, body = do(r, http.MethodPost, "/close", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, opened["folio"], body["data"].(map[string]any)["folio"])

	shifts := store.Shifts("GLOBEX", "JP")
	require.Len(t, shifts, 1)
	require.NotNil(t, shifts[0].IP)
	assert.NotEmpty(t, *shifts[0].IP)

	w, body = do(r, http.MethodGet, "/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	last := body["data"].(map[string]any)["last"].(map[string]any)
	assert.Equal(t, "GLOBEX", last["empresa"])
}

func TestJornada_Errors(t *testing.T) {
	r, _ := newRouter(record(""))

	w, body := do(r, http.MethodPost, "/open", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empresa_required", body["reason"])

	w, body = do(r, http.MethodPost, "/close", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_open_jornada", body["reason"])

	w, body = do(r, http.MethodGet, "/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["data"].(map[string]any)["open"])

	w, body = do(r, http.MethodGet, "/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["data"].(map[string]any)["last"])

	w, _ = do(r, http.MethodPost, "/open", `{"empresaNombre":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

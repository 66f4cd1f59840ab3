package system

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/system"
	"ledroitcheck-service/internal/middleware"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	scope     system.ListScope
	companies []identity.Company
	storage   system.Storage
	err       error
	deleted   string
}

func (s *stubRegistry) List(_ context.Context, companies []identity.Company, scope system.ListScope) ([]*system.SecondarySystem, error) {
	s.companies, s.scope = companies, scope
	if s.err != nil {
		return nil, s.err
	}
	return []*system.SecondarySystem{{ID: "1", Name: "NOMINA"}}, nil
}

func (s *stubRegistry) Create(_ context.Context, _ []identity.Company, req *system.UpsertRequest) (*system.SecondarySystem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &system.SecondarySystem{ID: "new", Name: req.Name, URL: req.URL, Storage: s.storage}, nil
}

func (s *stubRegistry) Update(_ context.Context, _ []identity.Company, id string, req *system.UpsertRequest) (*system.SecondarySystem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &system.SecondarySystem{ID: id, Name: strings.ToUpper(req.Name)}, nil
}

func (s *stubRegistry) Delete(_ context.Context, _ []identity.Company, id string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = id
	return nil
}

func newRouter(reg Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSystemHandler(reg)
	rec := &identity.Record{
		Initials:  "JP",
		Companies: []identity.Company{{Name: "ACME", CompanyActive: true, UserActive: true, Roles: []string{"A1"}}},
	}

	r := gin.New()
	g := r.Group("/api/v1/systems", func(c *gin.Context) {
		c.Set(middleware.CtxSession, rec)
		c.Next()
	})
	g.GET("", h.ListSystems)
	g.POST("", h.CreateSystem)
	g.PUT("/:id", h.UpdateSystem)
	g.DELETE("/:id", h.DeleteSystem)
	return r
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

const upsertBody = `{"nombre":"nomina","url":"https://n.example/","sistemaOrigen":"LEDROITCHECK","permisos":[{"empresa":"ACME","rol":"A3"}]}`

func TestListSystems_Scope(t *testing.T) {
	reg := &stubRegistry{}
	r := newRouter(reg)

	w, body := do(r, http.MethodGet, "/api/v1/systems", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, system.ScopeAccess, reg.scope)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["total"])
	require.Len(t, reg.companies, 1)

	_, _ = do(r, http.MethodGet, "/api/v1/systems?scope=manage", "")
	assert.Equal(t, system.ScopeManage, reg.scope)

	_, _ = do(r, http.MethodGet, "/api/v1/systems?scope=everything", "")
	assert.Equal(t, system.ScopeAccess, reg.scope)
}

func TestCreateSystem(t *testing.T) {
	w, body := do(newRouter(&stubRegistry{storage: system.StoragePrimary}), http.MethodPost, "/api/v1/systems", upsertBody)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "system created successfully", body["message"])

	w, body = do(newRouter(&stubRegistry{storage: system.StorageLocal}), http.MethodPost, "/api/v1/systems", upsertBody)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "system saved locally", body["message"])
	assert.Equal(t, "local", body["data"].(map[string]any)["storage"])

	w, _ = do(newRouter(&stubRegistry{}), http.MethodPost, "/api/v1/systems", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = do(newRouter(&stubRegistry{err: xerrors.ErrForbidden}), http.MethodPost, "/api/v1/systems", upsertBody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["reason"])
}

func TestUpdateAndDeleteSystem(t *testing.T) {
	reg := &stubRegistry{}
	r := newRouter(reg)

	w, body := do(r, http.MethodPut, "/api/v1/systems/abc", upsertBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NOMINA", body["data"].(map[string]any)["nombre"])

	w, _ = do(r, http.MethodDelete, "/api/v1/systems/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", reg.deleted)

	missing := newRouter(&stubRegistry{err: xerrors.ErrSystemNotFound})
	w, body = do(missing, http.MethodDelete, "/api/v1/systems/zzz", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "system_not_found", body["reason"])

	down := newRouter(&stubRegistry{err: xerrors.ErrUnavailable})
	w, body = do(down, http.MethodPut, "/api/v1/systems/abc", upsertBody)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, body["error"])
}

func TestUpsertSystem_RejectsMissingFields(t *testing.T) {
	bodies := map[string]string{
		"no name":        `{"url":"https://n.example/","sistemaOrigen":"LEDROITCHECK","permisos":[{"empresa":"ACME","rol":"A3"}]}`,
		"no url":         `{"nombre":"nomina","sistemaOrigen":"LEDROITCHECK","permisos":[{"empresa":"ACME","rol":"A3"}]}`,
		"no origin":      `{"nombre":"nomina","url":"https://n.example/","permisos":[{"empresa":"ACME","rol":"A3"}]}`,
		"no permissions": `{"nombre":"nomina","url":"https://n.example/","sistemaOrigen":"LEDROITCHECK"}`,
		"empty list":     `{"nombre":"nomina","url":"https://n.example/","sistemaOrigen":"LEDROITCHECK","permisos":[]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w, _ := do(newRouter(&stubRegistry{}), http.MethodPost, "/api/v1/systems", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w, _ = do(newRouter(&stubRegistry{}), http.MethodPut, "/api/v1/systems/abc", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

// internal/handlers/system/system_handler.go
package system

import (
	"context"
	"net/http"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/system"
	"ledroitcheck-service/internal/middleware"
	"ledroitcheck-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Registry interface {
	List(ctx context.Context, companies []identity.Company, scope system.ListScope) ([]*system.SecondarySystem, error)
	Create(ctx context.Context, companies []identity.Company, req *system.UpsertRequest) (*system.SecondarySystem, error)
	Update(ctx context.Context, companies []identity.Company, id string, req *system.UpsertRequest) (*system.SecondarySystem, error)
	Delete(ctx context.Context, companies []identity.Company, id string) error
}

type SystemHandler struct {
	registry Registry
}

func NewSystemHandler(registry Registry) *SystemHandler {
	return &SystemHandler{registry: registry}
}

// ListSystems returns the systems the user can open, or edit with ?scope=manage
func (h *SystemHandler) ListSystems(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	scope := system.ScopeAccess
	if system.ListScope(c.Query("scope")) == system.ScopeManage {
		scope = system.ScopeManage
	}

	systems, err := h.registry.List(c.Request.Context(), rec.Companies, scope)
	if err != nil {
		response.Fail(c, "failed to list systems", err)
		return
	}

	response.Success(c, http.StatusOK, "systems retrieved", gin.H{
		"systems": systems,
		"total":   len(systems),
	})
}

// CreateSystem registers a new secondary system
func (h *SystemHandler) CreateSystem(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	var req system.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	created, err := h.registry.Create(c.Request.Context(), rec.Companies, &req)
	if err != nil {
		response.Fail(c, "failed to create system", err)
		return
	}

	msg := "system created successfully"
	if created.Storage == system.StorageLocal {
		msg = "system saved locally"
	}
	response.Success(c, http.StatusCreated, msg, created)
}

// UpdateSystem edits a secondary system
func (h *SystemHandler) UpdateSystem(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	var req system.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	updated, err := h.registry.Update(c.Request.Context(), rec.Companies, c.Param("id"), &req)
	if err != nil {
		response.Fail(c, "failed to update system", err)
		return
	}

	response.Success(c, http.StatusOK, "system updated successfully", updated)
}

// DeleteSystem removes a secondary system
func (h *SystemHandler) DeleteSystem(c *gin.Context) {
	rec := middleware.MustGetSession(c)

	if err := h.registry.Delete(c.Request.Context(), rec.Companies, c.Param("id")); err != nil {
		response.Fail(c, "failed to delete system", err)
		return
	}

	response.Success(c, http.StatusOK, "system deleted successfully", nil)
}

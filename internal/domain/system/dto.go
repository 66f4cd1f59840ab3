// internal/domain/system/dto.go
package system

import (
	"fmt"
	"strings"
)

// UpsertRequest is the payload for creating or editing a secondary system.
type UpsertRequest struct {
	Name              string       `json:"nombre" binding:"required"`
	URL               string       `json:"url" binding:"required"`
	Description       string       `json:"descripcion"`
	OriginSystem      string       `json:"sistemaOrigen" binding:"required"`
	RequestingCompany string       `json:"empresaSolicitante"`
	Permissions       []Permission `json:"permisos" binding:"required,min=1"`
	OpenInNewWindow   bool         `json:"abrirNuevaVentana"`
}

// Validate checks required fields for callers that do not bind through gin,
// and rejects blank strings the binding tags let through. All problems are
// reported together.
func (r *UpsertRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "nombre")
	}
	if strings.TrimSpace(r.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(r.OriginSystem) == "" {
		missing = append(missing, "sistemaOrigen")
	}
	if len(r.Permissions) == 0 {
		missing = append(missing, "permisos")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ListScope selects which systems List returns.
type ListScope string

const (
	// ScopeAccess returns systems the user may be relayed to.
	ScopeAccess ListScope = "access"
	// ScopeManage returns systems the user may edit.
	ScopeManage ListScope = "manage"
)

// internal/domain/system/entity.go
package system

import "time"

// Storage labels where a system record lives.
type Storage string

const (
	StoragePrimary Storage = "primary"
	StorageLocal   Storage = "local"
)

// DefaultOriginSystem is used when a stored record carries no origin.
const DefaultOriginSystem = "DECLAROFACTUR"

// SecondarySystem is a partner application eligible to receive derived logins.
type SecondarySystem struct {
	ID                string       `json:"id"`
	Name              string       `json:"nombre"`
	URL               string       `json:"url"`
	Description       string       `json:"descripcion"`
	OriginSystem      string       `json:"sistemaOrigen"`
	RequestingCompany string       `json:"empresaSolicitante"`
	Permissions       []Permission `json:"permisos"`
	OpenInNewWindow   bool         `json:"abrirNuevaVentana"`
	CreatedAt         time.Time    `json:"fechaCreacion"`
	UpdatedAt         time.Time    `json:"fechaModificacion"`
	Storage           Storage      `json:"storage,omitempty"`
}

// Permission grants access to holders of Role (or higher) in Company.
type Permission struct {
	Company string `json:"empresa"`
	Role    string `json:"rol"`
}

// SameTarget reports whether two records describe the same name and URL.
func (s *SecondarySystem) SameTarget(o *SecondarySystem) bool {
	return s.Name == o.Name && s.URL == o.URL
}

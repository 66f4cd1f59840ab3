// internal/domain/handoff/entity.go
package handoff

import (
	"encoding/json"
	"time"
)

// FieldName is the form field carrying the serialized payload.
const FieldName = "respuestaLMaster"

// DefaultOriginSystem labels sessions whose payload names no origin.
const DefaultOriginSystem = "LEDROITCHECK"

// MissingInitialsKey stores payloads that carry no initials.
const MissingInitialsKey = "sin_iniciales"

// LastLogin is the most recent successful authentication payload of a user.
type LastLogin struct {
	Initials     string          `json:"iniciales"`
	Response     json.RawMessage `json:"respuestaLMaster"`
	OriginSystem string          `json:"sistemaOrigen,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Target describes where a relay sends the user.
type Target struct {
	URL               string `json:"url" binding:"required"`
	OriginSystem      string `json:"sistemaOrigen"`
	RequestingCompany string `json:"empresaSolicitante"`
	OpenInNewWindow   bool   `json:"abrirNuevaVentana"`
}

// Handoff is a prepared auto-submitting POST to a partner system.
type Handoff struct {
	Action       string `json:"action"`
	Target       string `json:"target"`
	Field        string `json:"field"`
	Payload      string `json:"payload"`
	SessionEnded bool   `json:"sessionEnded"`
}

// AuditEvent is posted to the external auditing endpoint.
type AuditEvent struct {
	System        string  `json:"sistema"`
	Initials      *string `json:"iniciales"`
	CompanyCount  int     `json:"empresasCount"`
	Success       bool    `json:"success"`
	TimestampMsec int64   `json:"ts"`
}

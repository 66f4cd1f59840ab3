// internal/domain/jornada/dto.go
package jornada

// OpenRequest is the body of an open call. Company defaults to the session's
// selected company when empty.
type OpenRequest struct {
	Company  string   `json:"empresaNombre"`
	Location Location `json:"ubicacion"`
	Device   Device   `json:"dispositivo"`
	IP       *string  `json:"ip"`
}

// OpenResult is returned by a successful open.
type OpenResult struct {
	Folio   string `json:"folio"`
	Company string `json:"empresaNombre"`
	UserKey string `json:"iniciales"`
}

// CloseResult is returned by a successful close.
type CloseResult struct {
	Folio   string `json:"folio"`
	Company string `json:"empresaNombre"`
	UserKey string `json:"iniciales"`
}

// Event types published on open-index changes.
const (
	EventOpened = "jornada:opened"
	EventClosed = "jornada:closed"
)

// ChangeEvent is the payload of an open-index change. Index is nil after a close.
type ChangeEvent struct {
	Status  string     `json:"status"`
	UserKey string     `json:"iniciales"`
	Company string     `json:"empresaNombre"`
	Folio   string     `json:"folio"`
	Index   *OpenIndex `json:"index"`
}

// OpenCommand carries everything a store needs to open a shift.
type OpenCommand struct {
	UserKey  string
	Company  string
	Location Location
	Device   Device
	IP       *string
}

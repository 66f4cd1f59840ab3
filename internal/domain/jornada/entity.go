// internal/domain/jornada/entity.go
package jornada

import "time"

// State of a shift record.
type State string

const (
	StateOpen   State = "abierta"
	StateClosed State = "cerrada"
)

// Shift is one attendance session, keyed by folio within (company, user).
type Shift struct {
	Folio     string     `json:"folio"`
	Company   string     `json:"empresa"`
	UserKey   string     `json:"usuario"`
	EntryTime time.Time  `json:"horaEntrada"`
	ExitTime  *time.Time `json:"horaSalida"`
	State     State      `json:"estado"`
	Location  Location   `json:"ubicacion"`
	Device    Device     `json:"dispositivo"`
	IP        *string    `json:"ip"`
}

// Location fields are nil when the client could not provide them.
type Location struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy"`
}

type Device struct {
	IsMobile bool `json:"isMobile"`
}

// OpenIndex exists exactly while the user has an open shift.
type OpenIndex struct {
	UserKey   string    `json:"usuario"`
	Company   string    `json:"empresaNombre"`
	Folio     string    `json:"folio"`
	EntryTime time.Time `json:"horaEntrada"`
}

// LastShift summarizes the most recently closed shift.
type LastShift struct {
	Company    string    `json:"empresa"`
	Folio      string    `json:"folio"`
	EntryTime  time.Time `json:"horaEntrada"`
	ExitTime   time.Time `json:"horaSalida"`
	DurationMs int64     `json:"duracionMs"`
}

// Closed reports whether s is a finished record with both timestamps.
func (s *Shift) Closed() bool {
	return s.State == StateClosed && !s.EntryTime.IsZero() && s.ExitTime != nil && !s.ExitTime.IsZero()
}

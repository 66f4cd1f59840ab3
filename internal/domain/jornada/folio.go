// internal/domain/jornada/folio.go
package jornada

import (
	"fmt"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/identity"
)

// RecentWindow bounds how many recent shifts per company are scanned for the last closed one.
const RecentWindow = 5

// FormatFolio renders CCCCC-YYYYMMDD-HHMMSS from a sequence value and a local clock reading.
func FormatFolio(seq int64, at time.Time) string {
	return fmt.Sprintf("%05d-%s", seq, at.Format("20060102-150405"))
}

// UserKey is the normalized identifier shifts are keyed by.
func UserKey(initials string) string {
	return identity.NormalizeInitials(strings.TrimSpace(initials))
}

// PickLast returns the closed shift with the latest exit time. On equal exit
// times the earlier candidate is kept. Nil when there is none.
func PickLast(candidates []Shift) *LastShift {
	var best *Shift
	for i := range candidates {
		s := &candidates[i]
		if !s.Closed() {
			continue
		}
		if best == nil || s.ExitTime.After(*best.ExitTime) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return &LastShift{
		Company:    best.Company,
		Folio:      best.Folio,
		EntryTime:  best.EntryTime,
		ExitTime:   *best.ExitTime,
		DurationMs: best.ExitTime.Sub(best.EntryTime).Milliseconds(),
	}
}

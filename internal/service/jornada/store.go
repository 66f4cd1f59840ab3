// internal/service/jornada/store.go
package jornada

import (
	"context"

	"ledroitcheck-service/internal/domain/jornada"
)

// Store persists shifts. Open and Close are atomic: Open fails with
// xerrors.ErrAlreadyOpen when an open index exists, Close with
// xerrors.ErrNoOpenJornada when none does.
type Store interface {
	GetOpen(ctx context.Context, userKey string) (*jornada.OpenIndex, error)
	Open(ctx context.Context, cmd jornada.OpenCommand) (*jornada.OpenIndex, error)
	Close(ctx context.Context, userKey string) (*jornada.OpenIndex, error)
	Recent(ctx context.Context, userKey string, companies []string, perCompany int) ([]jornada.Shift, error)
}

// internal/repository/postgres/jornada_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledroitcheck-service/internal/domain/jornada"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// JornadaRepository persists shifts, per-(company,user) counters and the
// open index. The open index row is the only source of truth for whether a
// user is clocked in.
type JornadaRepository struct {
	db  *DB
	loc *time.Location
}

// NewJornadaRepository renders folio timestamps in loc.
func NewJornadaRepository(db *DB, loc *time.Location) *JornadaRepository {
	if loc == nil {
		loc = time.Local
	}
	return &JornadaRepository{db: db, loc: loc}
}

// GetOpen returns the open index for userKey, or nil when the user has no open shift.
func (r *JornadaRepository) GetOpen(ctx context.Context, userKey string) (*jornada.OpenIndex, error) {
	query := `
		SELECT usuario, empresa_nombre, folio, hora_entrada
		FROM jornadas_open
		WHERE usuario = $1
	`

	var idx jornada.OpenIndex
	err := r.db.Pool().QueryRow(ctx, query, userKey).Scan(&idx.UserKey, &idx.Company, &idx.Folio, &idx.EntryTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open jornada: %w", err)
	}
	return &idx, nil
}

// Open creates the shift, bumps the counter and inserts the open index in one
// transaction. The open index insert serializes concurrent opens for a user.
func (r *JornadaRepository) Open(ctx context.Context, cmd jornada.OpenCommand) (*jornada.OpenIndex, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		seq int64
		now time.Time
	)
	counterQuery := `
		INSERT INTO jornada_counters (empresa, usuario, next_consecutivo)
		VALUES ($1, $2, 1)
		ON CONFLICT (empresa, usuario)
		DO UPDATE SET next_consecutivo = jornada_counters.next_consecutivo + 1
		RETURNING next_consecutivo, now()
	`
	if err := tx.QueryRow(ctx, counterQuery, cmd.Company, cmd.UserKey).Scan(&seq, &now); err != nil {
		return nil, fmt.Errorf("failed to increment jornada counter: %w", err)
	}

	idx := jornada.OpenIndex{
		UserKey:   cmd.UserKey,
		Company:   cmd.Company,
		Folio:     jornada.FormatFolio(seq, now.In(r.loc)),
		EntryTime: now,
	}

	indexQuery := `
		INSERT INTO jornadas_open (usuario, empresa_nombre, folio, hora_entrada)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (usuario) DO NOTHING
		RETURNING usuario
	`
	var inserted string
	err = tx.QueryRow(ctx, indexQuery, idx.UserKey, idx.Company, idx.Folio, idx.EntryTime).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrAlreadyOpen
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create open index: %w", err)
	}

	shiftQuery := `
		INSERT INTO jornadas (
			empresa, usuario, folio, hora_entrada, hora_salida, estado,
			lat, lng, accuracy, is_mobile, ip
		) VALUES ($1, $2, $3, $4, NULL, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, shiftQuery,
		idx.Company, idx.UserKey, idx.Folio, idx.EntryTime, string(jornada.StateOpen),
		cmd.Location.Lat, cmd.Location.Lng, cmd.Location.Accuracy, cmd.Device.IsMobile, cmd.IP,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jornada: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit jornada open: %w", err)
	}
	return &idx, nil
}

// Close stamps the exit time on the open shift and removes the open index in
// one transaction.
func (r *JornadaRepository) Close(ctx context.Context, userKey string) (*jornada.OpenIndex, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var idx jornada.OpenIndex
	err = tx.QueryRow(ctx, `
		SELECT usuario, empresa_nombre, folio, hora_entrada
		FROM jornadas_open
		WHERE usuario = $1
		FOR UPDATE
	`, userKey).Scan(&idx.UserKey, &idx.Company, &idx.Folio, &idx.EntryTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNoOpenJornada
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock open index: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE jornadas
		SET hora_salida = now(), estado = $4
		WHERE empresa = $1 AND usuario = $2 AND folio = $3
	`, idx.Company, idx.UserKey, idx.Folio, string(jornada.StateClosed))
	if err != nil {
		return nil, fmt.Errorf("failed to close jornada: %w", err)
	}
	// The index must keep pointing at a shift; leave both untouched otherwise.
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("open index %s has no matching jornada: %w", idx.Folio, xerrors.ErrInternal)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM jornadas_open WHERE usuario = $1`, userKey); err != nil {
		return nil, fmt.Errorf("failed to delete open index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit jornada close: %w", err)
	}
	return &idx, nil
}

// Recent returns up to perCompany most recent shifts of userKey in each company.
func (r *JornadaRepository) Recent(ctx context.Context, userKey string, companies []string, perCompany int) ([]jornada.Shift, error) {
	if len(companies) == 0 {
		return nil, nil
	}

	query := `
		SELECT empresa, usuario, folio, hora_entrada, hora_salida, estado,
		       lat, lng, accuracy, is_mobile, ip
		FROM (
			SELECT j.*, row_number() OVER (PARTITION BY empresa ORDER BY hora_entrada DESC) AS rn
			FROM jornadas j
			WHERE usuario = $1 AND empresa = ANY($2)
		) recent
		WHERE rn <= $3
		ORDER BY empresa, hora_entrada DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userKey, pq.Array(companies), perCompany)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jornadas: %w", err)
	}
	defer rows.Close()

	var shifts []jornada.Shift
	for rows.Next() {
		var (
			s     jornada.Shift
			state string
		)
		if err := rows.Scan(
			&s.Company, &s.UserKey, &s.Folio, &s.EntryTime, &s.ExitTime, &state,
			&s.Location.Lat, &s.Location.Lng, &s.Location.Accuracy, &s.Device.IsMobile, &s.IP,
		); err != nil {
			return nil, fmt.Errorf("failed to scan jornada: %w", err)
		}
		s.State = jornada.State(state)
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jornadas: %w", err)
	}
	return shifts, nil
}

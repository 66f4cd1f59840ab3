// internal/repository/postgres/last_login_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"ledroitcheck-service/internal/domain/handoff"

	"github.com/jackc/pgx/v5"
)

type LastLoginRepository struct {
	db *DB
}

func NewLastLoginRepository(db *DB) *LastLoginRepository {
	return &LastLoginRepository{db: db}
}

// Upsert replaces the stored payload for the record's initials. Last write wins.
func (r *LastLoginRepository) Upsert(ctx context.Context, ll *handoff.LastLogin) error {
	query := `
		INSERT INTO last_successful_logins (iniciales, respuesta, sistema_origen, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (iniciales)
		DO UPDATE SET respuesta = EXCLUDED.respuesta,
		              sistema_origen = EXCLUDED.sistema_origen,
		              updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Pool().Exec(ctx, query, ll.Initials, []byte(ll.Response), ll.OriginSystem, ll.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert last login: %w", err)
	}
	return nil
}

// Get returns the stored payload for initials, or nil when there is none.
func (r *LastLoginRepository) Get(ctx context.Context, initials string) (*handoff.LastLogin, error) {
	query := `
		SELECT iniciales, respuesta, sistema_origen, updated_at
		FROM last_successful_logins
		WHERE iniciales = $1
	`

	var (
		ll  handoff.LastLogin
		raw []byte
	)
	err := r.db.Pool().QueryRow(ctx, query, initials).Scan(&ll.Initials, &raw, &ll.OriginSystem, &ll.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last login: %w", err)
	}
	ll.Response = raw
	return &ll, nil
}

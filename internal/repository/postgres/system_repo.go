// internal/repository/postgres/system_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledroitcheck-service/internal/domain/system"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type SystemRepository struct {
	db *DB
}

func NewSystemRepository(db *DB) *SystemRepository {
	return &SystemRepository{db: db}
}

const systemColumns = `
	id, nombre, url, descripcion, sistema_origen, empresa_solicitante,
	permisos, abrir_nueva_ventana, created_at, updated_at
`

// List returns every registered system ordered by name.
func (r *SystemRepository) List(ctx context.Context) ([]*system.SecondarySystem, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT `+systemColumns+` FROM secondary_systems ORDER BY nombre, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list systems: %w", err)
	}
	defer rows.Close()

	var out []*system.SecondarySystem
	for rows.Next() {
		s, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate systems: %w", err)
	}
	return out, nil
}

// Get returns the system with id, or xerrors.ErrSystemNotFound.
func (r *SystemRepository) Get(ctx context.Context, id string) (*system.SecondarySystem, error) {
	row := r.db.Pool().QueryRow(ctx, `SELECT `+systemColumns+` FROM secondary_systems WHERE id = $1`, id)
	s, err := scanSystem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrSystemNotFound
	}
	return s, err
}

func (r *SystemRepository) Create(ctx context.Context, s *system.SecondarySystem) error {
	perms, err := json.Marshal(s.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permisos: %w", err)
	}

	query := `
		INSERT INTO secondary_systems (
			id, nombre, url, descripcion, sistema_origen, empresa_solicitante,
			permisos, abrir_nueva_ventana, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Pool().Exec(ctx, query,
		s.ID, s.Name, s.URL, s.Description, s.OriginSystem, s.RequestingCompany,
		perms, s.OpenInNewWindow, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create system: %w", err)
	}
	return nil
}

func (r *SystemRepository) Update(ctx context.Context, s *system.SecondarySystem) error {
	perms, err := json.Marshal(s.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permisos: %w", err)
	}

	query := `
		UPDATE secondary_systems
		SET nombre = $2, url = $3, descripcion = $4, sistema_origen = $5,
		    empresa_solicitante = $6, permisos = $7, abrir_nueva_ventana = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query,
		s.ID, s.Name, s.URL, s.Description, s.OriginSystem, s.RequestingCompany,
		perms, s.OpenInNewWindow, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update system: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrSystemNotFound
	}
	return nil
}

func (r *SystemRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM secondary_systems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete system: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrSystemNotFound
	}
	return nil
}

// ExistsByNameURL reports whether a system with the same name and url exists.
func (r *SystemRepository) ExistsByNameURL(ctx context.Context, name, url string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM secondary_systems WHERE nombre = $1 AND url = $2)`,
		name, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check system: %w", err)
	}
	return exists, nil
}

func scanSystem(row pgx.Row) (*system.SecondarySystem, error) {
	var (
		s     system.SecondarySystem
		perms []byte
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.URL, &s.Description, &s.OriginSystem, &s.RequestingCompany,
		&perms, &s.OpenInNewWindow, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan system: %w", err)
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &s.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permisos: %w", err)
		}
	}
	if s.Permissions == nil {
		s.Permissions = []system.Permission{}
	}
	if s.OriginSystem == "" {
		s.OriginSystem = system.DefaultOriginSystem
	}
	s.Storage = system.StoragePrimary
	return &s, nil
}

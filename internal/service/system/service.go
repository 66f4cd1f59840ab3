// internal/service/system/service.go
package system

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/role"
	"ledroitcheck-service/internal/domain/system"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// PrimaryStore is the shared registry. Get, Update and Delete return
// xerrors.ErrSystemNotFound for unknown ids.
type PrimaryStore interface {
	List(ctx context.Context) ([]*system.SecondarySystem, error)
	Get(ctx context.Context, id string) (*system.SecondarySystem, error)
	Create(ctx context.Context, s *system.SecondarySystem) error
	Update(ctx context.Context, s *system.SecondarySystem) error
	Delete(ctx context.Context, id string) error
	ExistsByNameURL(ctx context.Context, name, url string) (bool, error)
}

// LocalStore holds systems saved while the primary store was unavailable.
type LocalStore interface {
	List(ctx context.Context) ([]*system.SecondarySystem, error)
	Get(ctx context.Context, id string) (*system.SecondarySystem, error)
	Save(ctx context.Context, s *system.SecondarySystem) error
	Delete(ctx context.Context, id string) error
	Migrated(ctx context.Context) (bool, error)
	MarkMigrated(ctx context.Context) error
}

type Service struct {
	primary PrimaryStore
	local   LocalStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(primary PrimaryStore, local LocalStore, logger *zap.Logger) *Service {
	return &Service{primary: primary, local: local, logger: logger, now: time.Now}
}

// List returns the systems visible to a user with companies. ScopeAccess keeps
// systems the user may be relayed to; ScopeManage keeps those the user may edit.
func (s *Service) List(ctx context.Context, companies []identity.Company, scope system.ListScope) ([]*system.SecondarySystem, error) {
	all, err := s.primary.List(ctx)
	if err != nil {
		s.logger.Warn("primary system registry unavailable, using local copy", zap.Error(err))
		all, err = s.local.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list systems: %w: %v", xerrors.ErrUnavailable, err)
		}
	} else if migrated := s.migrateLocal(ctx); migrated > 0 {
		if again, err := s.primary.List(ctx); err == nil {
			all = again
		}
	}

	out := make([]*system.SecondarySystem, 0, len(all))
	for _, sys := range all {
		var ok bool
		switch scope {
		case system.ScopeManage:
			ok = role.CanEditSystem(companies, sys)
		default:
			ok = role.CanAccessSystem(companies, sys.Permissions)
		}
		if ok {
			out = append(out, sys)
		}
	}
	return out, nil
}

// Get resolves a system from the primary store, then the local one.
func (s *Service) Get(ctx context.Context, id string) (*system.SecondarySystem, error) {
	sys, err := s.primary.Get(ctx, id)
	if err == nil {
		return sys, nil
	}
	primaryMissing := errors.Is(err, xerrors.ErrSystemNotFound)
	if !primaryMissing {
		s.logger.Warn("primary system lookup failed, trying local copy", zap.String("id", id), zap.Error(err))
	}

	sys, localErr := s.local.Get(ctx, id)
	switch {
	case localErr == nil:
		return sys, nil
	case !errors.Is(localErr, xerrors.ErrSystemNotFound):
		return nil, fmt.Errorf("get system: %w: %v", xerrors.ErrUnavailable, localErr)
	case primaryMissing:
		return nil, xerrors.ErrSystemNotFound
	default:
		return nil, fmt.Errorf("get system: %w: %v", xerrors.ErrUnavailable, err)
	}
}

// Create registers a system. Only users holding A1 or A2 somewhere may create.
// When the primary store fails the record is kept locally and labelled so.
func (s *Service) Create(ctx context.Context, companies []identity.Company, req *system.UpsertRequest) (*system.SecondarySystem, error) {
	if !role.CanConfigure(companies) {
		return nil, xerrors.ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, err.Error())
	}

	now := s.now().UTC()
	sys := fromRequest(req)
	sys.ID = ulid.Make().String()
	sys.CreatedAt = now
	sys.UpdatedAt = now
	sys.Storage = system.StoragePrimary

	err := s.primary.Create(ctx, sys)
	if err == nil {
		s.logger.Info("system registered", zap.String("id", sys.ID), zap.String("nombre", sys.Name))
		return sys, nil
	}

	s.logger.Error("failed to register system, saving locally", zap.String("nombre", sys.Name), zap.Error(err))
	sys.Storage = system.StorageLocal
	if err := s.local.Save(ctx, sys); err != nil {
		return nil, fmt.Errorf("create system: %w: %v", xerrors.ErrUnavailable, err)
	}
	return sys, nil
}

// Update edits a system the user may edit. The name is stored uppercased.
func (s *Service) Update(ctx context.Context, companies []identity.Company, id string, req *system.UpsertRequest) (*system.SecondarySystem, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !role.CanEditSystem(companies, current) {
		return nil, xerrors.ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, err.Error())
	}

	updated := fromRequest(req)
	updated.ID = current.ID
	updated.Name = strings.ToUpper(updated.Name)
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = s.now().UTC()
	updated.Storage = current.Storage

	if current.Storage == system.StorageLocal {
		err = s.local.Save(ctx, updated)
	} else {
		err = s.primary.Update(ctx, updated)
	}
	if errors.Is(err, xerrors.ErrSystemNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update system: %w: %v", xerrors.ErrUnavailable, err)
	}
	return updated, nil
}

// Delete removes a system the user may edit.
func (s *Service) Delete(ctx context.Context, companies []identity.Company, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !role.CanEditSystem(companies, current) {
		return xerrors.ErrForbidden
	}

	if current.Storage == system.StorageLocal {
		err = s.local.Delete(ctx, id)
	} else {
		err = s.primary.Delete(ctx, id)
	}
	if errors.Is(err, xerrors.ErrSystemNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("delete system: %w: %v", xerrors.ErrUnavailable, err)
	}
	return nil
}

// migrateLocal copies locally saved systems to the primary store once,
// skipping records whose name and url already exist there. The marker is set
// only when every copy succeeded.
func (s *Service) migrateLocal(ctx context.Context) int {
	done, err := s.local.Migrated(ctx)
	if err != nil || done {
		return 0
	}
	locals, err := s.local.List(ctx)
	if err != nil {
		s.logger.Warn("failed to read local systems for migration", zap.Error(err))
		return 0
	}

	migrated := 0
	for _, l := range locals {
		exists, err := s.primary.ExistsByNameURL(ctx, l.Name, l.URL)
		if err != nil {
			s.logger.Warn("system migration aborted", zap.Error(err))
			return migrated
		}
		if exists {
			continue
		}

		copied := *l
		copied.ID = ulid.Make().String()
		copied.Storage = system.StoragePrimary
		if copied.OriginSystem == "" {
			copied.OriginSystem = system.DefaultOriginSystem
		}
		if copied.CreatedAt.IsZero() {
			copied.CreatedAt = s.now().UTC()
		}
		copied.UpdatedAt = s.now().UTC()
		if err := s.primary.Create(ctx, &copied); err != nil {
			s.logger.Warn("system migration aborted", zap.String("nombre", l.Name), zap.Error(err))
			return migrated
		}
		migrated++
	}

	if err := s.local.MarkMigrated(ctx); err != nil {
		s.logger.Warn("failed to set system migration marker", zap.Error(err))
	}
	if migrated > 0 {
		s.logger.Info("local systems migrated", zap.Int("count", migrated))
	}
	return migrated
}

func fromRequest(req *system.UpsertRequest) *system.SecondarySystem {
	perms := make([]system.Permission, len(req.Permissions))
	copy(perms, req.Permissions)
	return &system.SecondarySystem{
		Name:              strings.TrimSpace(req.Name),
		URL:               strings.TrimSpace(req.URL),
		Description:       strings.TrimSpace(req.Description),
		OriginSystem:      strings.TrimSpace(req.OriginSystem),
		RequestingCompany: strings.TrimSpace(req.RequestingCompany),
		Permissions:       perms,
		OpenInNewWindow:   req.OpenInNewWindow,
	}
}

// internal/service/lastlogin/service.go
package lastlogin

import (
	"context"
	"fmt"
	"strings"

	"ledroitcheck-service/internal/domain/handoff"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Store reads and writes last-login records. Get returns nil, nil when absent.
type Store interface {
	Get(ctx context.Context, initials string) (*handoff.LastLogin, error)
}

type Cache interface {
	Store
	Put(ctx context.Context, ll *handoff.LastLogin) error
}

type Repository interface {
	Store
	Upsert(ctx context.Context, ll *handoff.LastLogin) error
}

// Service keeps the most recent successful login per user in Postgres with a
// Redis read-through cache.
type Service struct {
	cache  Cache
	repo   Repository
	logger *zap.Logger
}

func NewService(cache Cache, repo Repository, logger *zap.Logger) *Service {
	return &Service{cache: cache, repo: repo, logger: logger}
}

// Save records ll in the durable store and refreshes the cache. A cache
// failure is logged only.
func (s *Service) Save(ctx context.Context, ll *handoff.LastLogin) error {
	if strings.TrimSpace(ll.Initials) == "" {
		ll.Initials = handoff.MissingInitialsKey
	}

	if s.repo != nil {
		if err := s.repo.Upsert(ctx, ll); err != nil {
			return fmt.Errorf("save last login: %w: %v", xerrors.ErrUnavailable, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, ll); err != nil {
			s.logger.Warn("failed to cache last login", zap.String("iniciales", ll.Initials), zap.Error(err))
		}
	}
	return nil
}

// Lookup prefers the cache and falls back to the durable store, backfilling
// the cache on a hit. Returns xerrors.ErrNoLastLogin when neither has a record.
func (s *Service) Lookup(ctx context.Context, initials string) (*handoff.LastLogin, error) {
	if s.cache != nil {
		ll, err := s.cache.Get(ctx, initials)
		if err != nil {
			s.logger.Warn("last login cache read failed", zap.String("iniciales", initials), zap.Error(err))
		} else if ll != nil && len(ll.Response) > 0 {
			return ll, nil
		}
	}

	if s.repo == nil {
		return nil, xerrors.ErrNoLastLogin
	}
	ll, err := s.repo.Get(ctx, initials)
	if err != nil {
		return nil, fmt.Errorf("lookup last login: %w: %v", xerrors.ErrUnavailable, err)
	}
	if ll == nil || len(ll.Response) == 0 {
		return nil, xerrors.ErrNoLastLogin
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, ll); err != nil {
			s.logger.Warn("failed to backfill last login cache", zap.String("iniciales", initials), zap.Error(err))
		}
	}
	return ll, nil
}

// internal/repository/redis/system_store.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledroitcheck-service/internal/domain/system"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

const (
	localSystemsKey = "systems:local"
	migratedKey     = "systems:migrated"

	// MigrationMarker is the value stored once local systems were copied to the primary store.
	MigrationMarker = "ingActivosMigrado"
)

// SystemStore is the fallback store for systems saved while the primary store
// was unavailable. Records live in one hash keyed by id.
type SystemStore struct {
	client goredis.UniversalClient
}

func NewSystemStore(client goredis.UniversalClient) *SystemStore {
	return &SystemStore{client: client}
}

func (s *SystemStore) List(ctx context.Context) ([]*system.SecondarySystem, error) {
	vals, err := s.client.HGetAll(ctx, localSystemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list local systems: %w", err)
	}

	out := make([]*system.SecondarySystem, 0, len(vals))
	for id, raw := range vals {
		var sys system.SecondarySystem
		if err := json.Unmarshal([]byte(raw), &sys); err != nil {
			continue
		}
		if sys.ID == "" {
			sys.ID = id
		}
		sys.Storage = system.StorageLocal
		out = append(out, &sys)
	}
	sortSystems(out)
	return out, nil
}

func (s *SystemStore) Get(ctx context.Context, id string) (*system.SecondarySystem, error) {
	raw, err := s.client.HGet(ctx, localSystemsKey, id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, xerrors.ErrSystemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local system: %w", err)
	}

	var sys system.SecondarySystem
	if err := json.Unmarshal(raw, &sys); err != nil {
		return nil, fmt.Errorf("failed to decode local system: %w", err)
	}
	sys.Storage = system.StorageLocal
	return &sys, nil
}

// Save creates or replaces a record.
func (s *SystemStore) Save(ctx context.Context, sys *system.SecondarySystem) error {
	data, err := json.Marshal(sys)
	if err != nil {
		return fmt.Errorf("failed to marshal system: %w", err)
	}
	if err := s.client.HSet(ctx, localSystemsKey, sys.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save local system: %w", err)
	}
	return nil
}

func (s *SystemStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.HDel(ctx, localSystemsKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete local system: %w", err)
	}
	if n == 0 {
		return xerrors.ErrSystemNotFound
	}
	return nil
}

// Migrated reports whether the one-time migration already ran.
func (s *SystemStore) Migrated(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, migratedKey).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read migration marker: %w", err)
	}
	return v == MigrationMarker, nil
}

func (s *SystemStore) MarkMigrated(ctx context.Context) error {
	if err := s.client.Set(ctx, migratedKey, MigrationMarker, 0).Err(); err != nil {
		return fmt.Errorf("failed to set migration marker: %w", err)
	}
	return nil
}

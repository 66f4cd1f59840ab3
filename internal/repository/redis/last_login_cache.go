// internal/repository/redis/last_login_cache.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledroitcheck-service/internal/domain/handoff"

	goredis "github.com/redis/go-redis/v9"
)

const lastLoginPrefix = "last_login:"

// LastLoginCache keeps the most recent login payload per initials.
type LastLoginCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewLastLoginCache stores entries for ttl; zero keeps them indefinitely.
func NewLastLoginCache(client goredis.UniversalClient, ttl time.Duration) *LastLoginCache {
	return &LastLoginCache{client: client, ttl: ttl}
}

func (c *LastLoginCache) Put(ctx context.Context, ll *handoff.LastLogin) error {
	data, err := json.Marshal(ll)
	if err != nil {
		return fmt.Errorf("failed to marshal last login: %w", err)
	}
	if err := c.client.Set(ctx, lastLoginPrefix+ll.Initials, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache last login: %w", err)
	}
	return nil
}

// Get returns nil when nothing is cached for initials.
func (c *LastLoginCache) Get(ctx context.Context, initials string) (*handoff.LastLogin, error) {
	data, err := c.client.Get(ctx, lastLoginPrefix+initials).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached last login: %w", err)
	}

	var ll handoff.LastLogin
	if err := json.Unmarshal(data, &ll); err != nil {
		return nil, fmt.Errorf("failed to decode cached last login: %w", err)
	}
	return &ll, nil
}

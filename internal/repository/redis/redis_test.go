package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ledroitcheck-service/internal/domain/handoff"
	"ledroitcheck-service/internal/domain/system"
	xerrors "ledroitcheck-service/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, goredis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLastLoginCache(t *testing.T) {
	mr, client := newClient(t)
	cache := NewLastLoginCache(client, time.Hour)
	ctx := context.Background()

	got, err := cache.Get(ctx, "JP")
	require.NoError(t, err)
	assert.Nil(t, got)

	ll := &handoff.LastLogin{
		Initials:  "JP",
		Response:  json.RawMessage(`{"success":true,"data":{"iniciales":"JP"}}`),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.Put(ctx, ll))
	assert.True(t, mr.Exists("last_login:JP"))

	got, err = cache.Get(ctx, "JP")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, string(ll.Response), string(got.Response))

	mr.FastForward(2 * time.Hour)
	got, err = cache.Get(ctx, "JP")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSystemStore(t *testing.T) {
	_, client := newClient(t)
	store := NewSystemStore(client)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, xerrors.ErrSystemNotFound)

	require.NoError(t, store.Save(ctx, &system.SecondarySystem{ID: "b", Name: "ZETA", URL: "https://z"}))
	require.NoError(t, store.Save(ctx, &system.SecondarySystem{ID: "a", Name: "ALFA", URL: "https://a"}))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ALFA", list[0].Name)
	assert.Equal(t, system.StorageLocal, list[0].Storage)

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), xerrors.ErrSystemNotFound)

	migrated, err := store.Migrated(ctx)
	require.NoError(t, err)
	assert.False(t, migrated)
	require.NoError(t, store.MarkMigrated(ctx))
	migrated, err = store.Migrated(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)
}

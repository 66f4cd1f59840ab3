package db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewRedisClient(RedisConfig{Addresses: []string{addr}})
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(RedisConfig{})
	assert.Error(t, err)

	mr.Close()
	_, err = NewRedisClient(RedisConfig{Addresses: []string{addr}})
	assert.Error(t, err)
}

func TestConnectDB_RequiresURL(t *testing.T) {
	_, err := ConnectDB(t.Context(), PostgresConfig{})
	assert.Error(t, err)
}

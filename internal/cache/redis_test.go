package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore() (*RedisStore, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return NewRedisStoreFromClient(db, zerolog.New(&bytes.Buffer{})), mock
}

func TestRedisStoreGetHit(t *testing.T) {
	s, mock := setupRedisStore()
	mock.ExpectGet("events:abc").SetVal(`[{"agentId":"a"}]`)

	got, ok, err := s.Get(context.Background(), "events:abc")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"agentId":"a"}]`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetMiss(t *testing.T) {
	s, mock := setupRedisStore()
	mock.ExpectGet("events:abc").RedisNil()

	_, ok, err := s.Get(context.Background(), "events:abc")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetError(t *testing.T) {
	s, mock := setupRedisStore()
	mock.ExpectGet("events:abc").SetErr(errors.New("connection refused"))

	_, ok, err := s.Get(context.Background(), "events:abc")

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisStoreSet(t *testing.T) {
	s, mock := setupRedisStore()
	value := []byte("payload")
	mock.ExpectSet("events:abc", value, 10*time.Minute).SetVal("OK")

	require.NoError(t, s.Set(context.Background(), "events:abc", value, 10*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreDeletePrefix(t *testing.T) {
	s, mock := setupRedisStore()
	mock.ExpectScan(0, "events:*", 100).SetVal([]string{"events:a", "events:b"}, 7)
	mock.ExpectDel("events:a", "events:b").SetVal(2)
	mock.ExpectScan(7, "events:*", 100).SetVal([]string{}, 0)

	require.NoError(t, s.DeletePrefix(context.Background(), "events:"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorePing(t *testing.T) {
	s, mock := setupRedisStore()
	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	err := s.Ping(context.Background())
	assert.ErrorContains(t, err, "redis health check failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

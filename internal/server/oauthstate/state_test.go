package oauthstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

var sample = State{TenantID: "t1", ReturnHost: "shop.acme.test", ReturnPath: "/cart"}

func TestMemoryStore_TakeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clock.NewMock())

	key, err := Issue(ctx, s, sample, DefaultTTL)
	require.NoError(t, err)
	assert.Len(t, key, 43)

	got, err := s.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sample, *got)

	_, err = s.Take(ctx, key)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	s := NewMemoryStore(mock)

	require.NoError(t, s.Put(ctx, "a", sample, DefaultTTL))
	require.NoError(t, s.Put(ctx, "b", sample, time.Hour))

	mock.Add(DefaultTTL)
	_, err := s.Take(ctx, "a")
	assert.ErrorIs(t, err, common.ErrInvalidState)

	require.NoError(t, s.Put(ctx, "c", sample, time.Minute))
	mock.Add(time.Minute)
	assert.Equal(t, 1, s.Sweep())

	_, err = s.Take(ctx, "b")
	assert.NoError(t, err)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStore_TakeOnce(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	key, err := Issue(ctx, s, sample, DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, mr.TTL(redisPrefix+key))

	got, err := s.Take(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sample, *got)
	assert.False(t, mr.Exists(redisPrefix+key))

	_, err = s.Take(ctx, key)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Put(ctx, "k", sample, DefaultTTL))
	mr.FastForward(DefaultTTL)

	_, err := s.Take(ctx, "k")
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, mr.Set(redisPrefix+"k", "{not json"))
	_, err := s.Take(ctx, "k")
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, s := newTestRedis(t)

	_, hit, err := c.Get(ctx, "layout:abc")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "layout:abc", []byte(`{"ok":true}`), time.Hour))
	assert.True(t, s.Exists("layout:abc"))
	assert.Equal(t, time.Hour, s.TTL("layout:abc"))

	data, hit, err := c.Get(ctx, "layout:abc")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `{"ok":true}`, string(data))

	require.NoError(t, c.Delete(ctx, "layout:abc"))
	assert.False(t, s.Exists("layout:abc"))
	require.NoError(t, c.Delete(ctx, "layout:abc"))
}

func TestRedisCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, s := newTestRedis(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	s.FastForward(2 * time.Minute)

	_, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_NoTTL(t *testing.T) {
	ctx := context.Background()
	c, s := newTestRedis(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, time.Duration(0), s.TTL("k"))
}

func TestRedisCache_ServerDown(t *testing.T) {
	c, s := newTestRedis(t)
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := c.Get(ctx, "k")
	assert.Error(t, err)
}

func TestNewRedisCache_Errors(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url")
	assert.ErrorContains(t, err, "parse redis url")

	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewRedisCache(ctx, "redis://"+addr)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestNewRedisCacheFromClient(t *testing.T) {
	s := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

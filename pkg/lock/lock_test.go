package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTryLock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	release()

	release, ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestRedisTryLock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedis(client, "reconcile", time.Minute)
	b := NewRedis(client, "reconcile", time.Minute)
	ctx := context.Background()

	release, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, srv.Exists("reconcile"))

	releaseB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	releaseB()
}

func TestRedisReleaseKeepsForeignLock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedis(client, "reconcile", time.Second)
	ctx := context.Background()

	release, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// lock expires and another replica takes it over
	srv.FastForward(2 * time.Second)
	require.NoError(t, srv.Set("reconcile", "other-holder"))

	release()

	got, err := srv.Get("reconcile")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
}

func TestRedisRenewsWhileHeld(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ttl := 300 * time.Millisecond
	a := NewRedis(client, "reconcile", ttl)
	b := NewRedis(client, "reconcile", ttl)
	ctx := context.Background()

	release, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	srv.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool {
		return srv.TTL("reconcile") > 100*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "holder must push the expiry out")

	// past the original TTL, the key is still ours
	srv.FastForward(250 * time.Millisecond)
	require.True(t, srv.Exists("reconcile"))

	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second replica must not overlap a live holder")
}

func TestRedisReleaseStopsRenewal(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedis(client, "reconcile", 30*time.Millisecond)
	release, ok, err := a.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	release()
	release()
	assert.False(t, srv.Exists("reconcile"))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, srv.Exists("reconcile"))
}

func TestNewRedisFromURLRejectsGarbage(t *testing.T) {
	_, _, err := NewRedisFromURL("not a url", "k", time.Second)
	assert.Error(t, err)
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSweepLockIsExclusive(t *testing.T) {
	_, client := newMiniredisClient(t)
	first := NewRedisSweepLock(client, "pawfund:test:sweep", time.Minute)
	second := NewRedisSweepLock(client, "pawfund:test:sweep", time.Minute)

	release, ok, err := first.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	release()

	release2, ok, err := second.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestRedisSweepLockExpires(t *testing.T) {
	mr, client := newMiniredisClient(t)
	lock := NewRedisSweepLock(client, "pawfund:test:sweep", time.Minute)

	staleRelease, ok, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok, err = lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// A stale holder must not free a lease it no longer owns.
	staleRelease()
	assert.True(t, mr.Exists("pawfund:test:sweep"))
}

func TestRedisSweepLockGuardsReconcile(t *testing.T) {
	_, client := newMiniredisClient(t)
	f := newJobsFixture()
	f.jobs.SetSweepLock(NewRedisSweepLock(client, "", 0))

	holder := NewRedisSweepLock(client, "", 0)
	release, ok, err := holder.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.jobs.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrReconciliationInProgress)

	release()
	_, err = f.jobs.Reconcile(context.Background())
	assert.NoError(t, err)
}

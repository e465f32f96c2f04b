package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedisSweepLock is a single-holder lease in Redis. Only the holder can
// release it; an expired lease is free for the next sweeper.
type RedisSweepLock struct {
	rs  *redsync.Redsync
	key string
	ttl time.Duration
}

func NewRedisSweepLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisSweepLock {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		trimmedKey = "pawfund:fundraising:reconciliation"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisSweepLock{
		rs:  redsync.New(goredis.NewPool(client)),
		key: trimmedKey,
		ttl: ttl,
	}
}

func (l *RedisSweepLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	mutex := l.rs.NewMutex(l.key, redsync.WithExpiry(l.ttl), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		if isLockContention(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = mutex.UnlockContext(releaseCtx)
	}
	return release, true, nil
}

// redsync reports a busy lock either as ErrFailed or as a "lock already taken" error.
func isLockContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return true
	}
	return strings.Contains(err.Error(), "lock already taken")
}

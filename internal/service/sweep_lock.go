package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSweepLock is a SweepLock backed by SET NX with a TTL.  The TTL
// bounds how long a crashed holder can block other instances.
type RedisSweepLock struct {
	rdb   *redis.Client
	key   string
	owner string
	ttl   time.Duration
}

// NewRedisSweepLock returns a lock on key.  owner must be unique per process.
func NewRedisSweepLock(rdb *redis.Client, key, owner string, ttl time.Duration) *RedisSweepLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisSweepLock{rdb: rdb, key: key, owner: owner, ttl: ttl}
}

// Acquire takes the lock for the configured TTL.  It reports false when
// another owner holds it.
func (l *RedisSweepLock) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

// Release deletes the key only if this process still owns it.
func (l *RedisSweepLock) Release(ctx context.Context) error {
	v, err := l.rdb.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if v != l.owner {
		return nil
	}
	return l.rdb.Del(ctx, l.key).Err()
}

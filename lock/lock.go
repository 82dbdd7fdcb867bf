// Package lock keeps two backfill runs from overlapping.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("lock is held by another process")

// Locker hands out named locks. The returned unlock func may be called more
// than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Noop grants every lock. Used when no Redis is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

// releaseLua deletes the key only while it still holds our token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis is a SETNX lock with a TTL.
type Redis struct {
	rdb     *redis.Client
	release *redis.Script
	token   func() string
}

var (
	_ Locker = (*Redis)(nil)
	_ Locker = Noop{}
)

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{
		rdb:     rdb,
		release: redis.NewScript(releaseLua),
		token:   func() string { return uuid.New().String() },
	}
}

// Dial connects and pings.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return rdb, nil
}

func Key(name string) string { return "papertrade:lock:" + name }

func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := l.token()
	k := Key(key)

	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrHeld)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.release.Run(rctx, l.rdb, []string{k}, token).Err()
	}, nil
}

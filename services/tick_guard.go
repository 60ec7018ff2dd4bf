package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TickGuard decides whether a scheduler tick may run. A tick that cannot
// acquire the guard is skipped, never queued.
type TickGuard interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalTickGuard prevents overlapping ticks inside one process.
type LocalTickGuard struct {
	running atomic.Bool
}

func (g *LocalTickGuard) TryAcquire(context.Context) (func(), bool, error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { g.running.Store(false) }, true, nil
}

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisTickGuard extends the local guard with a Redis lock so only one
// instance of a horizontally scaled deployment runs a tick at a time. The
// TTL bounds how long a crashed holder can block other instances.
type RedisTickGuard struct {
	local LocalTickGuard
	rc    *redis.Client
	key   string
	ttl   time.Duration
	log   zerolog.Logger
}

func NewRedisTickGuard(rc *redis.Client, key string, ttl time.Duration, log zerolog.Logger) *RedisTickGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisTickGuard{
		rc:  rc,
		key: key,
		ttl: ttl,
		log: log.With().Str("component", "redis_tick_guard").Logger(),
	}
}

func (g *RedisTickGuard) TryAcquire(ctx context.Context) (func(), bool, error) {
	releaseLocal, ok, _ := g.local.TryAcquire(ctx)
	if !ok {
		return nil, false, nil
	}

	token := uuid.NewString()
	acquired, err := g.rc.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		releaseLocal()
		return nil, false, fmt.Errorf("failed to acquire scheduler lock %q: %w", g.key, err)
	}
	if !acquired {
		releaseLocal()
		return nil, false, nil
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(ctx, g.rc, []string{g.key}, token).Err(); err != nil {
			g.log.Warn().Err(err).Str("key", g.key).Msg("failed to release scheduler lock")
		}
		releaseLocal()
	}, true, nil
}

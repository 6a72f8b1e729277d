// Package lock serialises turns of the same conversation.
package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

const (
	BackendRedis = "redis"
	BackendLocal = "local"
)

// New picks a Locker for the configured backend. rdb may be nil for local.
func New(cfg model.LockConfig, rdb redis.Cmdable) (model.Locker, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis lock backend needs a redis client")
		}
		return NewRedisLocker(rdb, cfg.TTL, cfg.Wait), nil
	case BackendLocal:
		return NewLocalLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

type entry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Waiting respects ctx.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, fmt.Errorf("%w: %s: %w", errx.ErrLockNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker holds a SET NX PX lease per key so turns are serialised across
// worker processes. The lease is renewed every ttl/3 while held and expires
// after ttl if the holder dies.
type RedisLocker struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
	renew time.Duration
}

func NewRedisLocker(rdb redis.Cmdable, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	renew := ttl / 3
	if renew <= 0 {
		renew = ttl
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, poll: 50 * time.Millisecond, renew: renew}
}

func (r *RedisLocker) key(k string) string {
	return "lock:conversation:" + k
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	lockKey := r.key(key)
	token := uuid.NewString()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, errx.WrapRedis(err)
		}
		if ok {
			return r.releaser(lockKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", errx.ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *RedisLocker) releaser(lockKey, token string) func() {
	done := make(chan struct{})
	go r.keepAlive(lockKey, token, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.rdb, []string{lockKey}, token).Err(); err != nil {
				logx.Warn().Err(err).Str("key", lockKey).Msg("failed to release conversation lock")
			}
		})
	}
}

// keepAlive extends the lease until done is closed or the lease is lost.
func (r *RedisLocker) keepAlive(lockKey, token string, done <-chan struct{}) {
	ticker := time.NewTicker(r.renew)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.renew)
		n, err := renewScript.Run(ctx, r.rdb, []string{lockKey}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			logx.Warn().Err(err).Str("key", lockKey).Msg("failed to renew conversation lock")
		case n == 0:
			logx.Error().Str("key", lockKey).Msg("conversation lock lost before release")
			return
		}
	}
}

var (
	_ model.Locker = (*LocalLocker)(nil)
	_ model.Locker = (*RedisLocker)(nil)
)

package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

func exerciseMutualExclusion(t *testing.T, l model.Locker) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "conv-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
}

func TestLocalLockerExclusive(t *testing.T) {
	exerciseMutualExclusion(t, NewLocalLocker())
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, errx.ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	r1, err := l.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer r1()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("expected other key to be free, got %v", err)
	}
	r2()
}

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLocker(rdb, time.Minute, wait)
	l.poll = 2 * time.Millisecond
	return l, mr
}

func TestRedisLockerExclusive(t *testing.T) {
	l, _ := newRedisLocker(t, 5*time.Second)
	exerciseMutualExclusion(t, l)
}

func TestRedisLockerTimesOut(t *testing.T) {
	l, _ := newRedisLocker(t, 20*time.Millisecond)
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := l.Acquire(context.Background(), "k"); !errors.Is(err, errx.ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
}

func TestRedisLockerReleaseKeepsForeignLease(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// lease expired and was taken by another holder
	if err := mr.Set(l.key("k"), "someone-else"); err != nil {
		t.Fatalf("set: %v", err)
	}
	release()
	if v, _ := mr.Get(l.key("k")); v != "someone-else" {
		t.Fatalf("expected foreign lease to survive, got %q", v)
	}
}

func TestRedisLockerRenewsLeaseWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	l.ttl, l.renew = 300*time.Millisecond, 20*time.Millisecond
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// a turn running past the original lease
	mr.FastForward(250 * time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for mr.TTL(l.key("k")) <= 100*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatalf("expected lease to be renewed, ttl=%s", mr.TTL(l.key("k")))
		}
		time.Sleep(5 * time.Millisecond)
	}
	mr.FastForward(250 * time.Millisecond)
	if !mr.Exists(l.key("k")) {
		t.Fatalf("expected lease to outlive its original ttl while held")
	}

	release()
	if mr.Exists(l.key("k")) {
		t.Fatalf("expected lease to be deleted on release")
	}
	again, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("expected key to be free after release, got %v", err)
	}
	again()
}

func TestNewSelectsBackend(t *testing.T) {
	if _, err := New(model.LockConfig{Backend: "redis"}, nil); err == nil {
		t.Fatalf("expected error without redis client")
	}
	l, err := New(model.LockConfig{Backend: "local"}, nil)
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := l.(*LocalLocker); !ok {
		t.Fatalf("expected *LocalLocker, got %T", l)
	}
}

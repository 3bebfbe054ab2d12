package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// CycleLock guards a key in process and, when a redis client is given,
// across processes. The redis key expires after ttl so a crashed holder
// cannot block cycles forever.
type CycleLock struct {
	rdb  *redis.Client
	ttl  time.Duration
	mu   sync.Mutex
	held map[string]struct{}
}

func NewCycleLock(rdb *redis.Client, ttl time.Duration) *CycleLock {
	return &CycleLock{
		rdb:  rdb,
		ttl:  ttl,
		held: make(map[string]struct{}),
	}
}

func (l *CycleLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	if _, ok := l.held[key]; ok {
		l.mu.Unlock()
		return nil, domain.ErrCycleInProgress
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	unlockLocal := func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}

	if l.rdb == nil {
		return func(context.Context) error {
			unlockLocal()
			return nil
		}, nil
	}

	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		unlockLocal()
		return nil, errors.Wrap(err, "failed to acquire cycle lock")
	}
	if !ok {
		unlockLocal()
		return nil, domain.ErrCycleInProgress
	}

	return func(ctx context.Context) error {
		defer unlockLocal()
		return releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}

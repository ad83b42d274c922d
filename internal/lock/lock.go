// Package lock provides a Redis-backed run lock so reconciliation
// passes from overlapping deployments cannot race the persist step.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKey = "reconciler:run:lock"
	defaultTTL = 5 * time.Minute
)

// ErrNotAcquired means another reconciliation run holds the lock.
var ErrNotAcquired = errors.New("run lock held by another instance")

// releaseScript deletes the lock only when it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RunLock is a single-holder lock with a TTL so a crashed run cannot
// block reconciliation forever.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRunLock creates a lock. Empty key and zero ttl select defaults.
func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = defaultKey
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RunLock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Acquire takes the lock, returning ErrNotAcquired when it is held.
func (l *RunLock) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	l.token = token
	return nil
}

// Release frees the lock if this instance still holds it. Releasing a
// lock that expired and was re-acquired elsewhere is a no-op.
func (l *RunLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	l.token = ""
	return nil
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockNamespace = "atelier:lock:"

// releaseIfOwner deletes the lock only while it still carries our token, so a
// holder whose lease expired cannot free a lock taken over by another replica.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockUnavailable = errors.New("lock backend not configured")

// Locker hands out short leases on named resources across replicas. It is nil
// when redis is not configured; a single replica needs no lease.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// TryLock takes the lease on name for ttl. ok is false when another holder
// owns it; token must be passed back to Release.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockUnavailable
	}
	if name == "" || ttl <= 0 {
		return "", false, errors.New("lock name and positive ttl are required")
	}

	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, lockNamespace+name, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, name, token string) error {
	if l == nil || l.client == nil || name == "" || token == "" {
		return nil
	}
	return releaseIfOwner.Run(ctx, l.client, []string{lockNamespace + name}, token).Err()
}

// internal/locks/locks.go
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when a lock cannot be acquired within the retry
// budget.
var ErrLockHeld = errors.New("lock is held by another process")

// Manager provides the two concurrency primitives the rules engine needs:
// a per-asset exclusivity lock serializing conflict-check-then-create for
// the same asset, and idempotency tokens making sweep side effects safe
// under at-least-once execution.
type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// releaseScript deletes the lock key only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held per-asset lock.
type Lock struct {
	manager *Manager
	key     string
	token   string
}

// AcquireAssetLock serializes same-asset mutations. It retries briefly so
// short contention (two interactive create requests) queues rather than
// fails; sustained contention returns ErrLockHeld.
func (m *Manager) AcquireAssetLock(ctx context.Context, assetID uuid.UUID, ttl time.Duration) (*Lock, error) {
	key := fmt.Sprintf("lock:asset:%s", assetID)
	token := uuid.NewString()

	const attempts = 10
	backoff := 50 * time.Millisecond
	for i := 0; i < attempts; i++ {
		ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire asset lock: %w", err)
		}
		if ok {
			return &Lock{manager: m, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, ErrLockHeld
}

// Release frees the lock if this holder still owns it. Releasing an
// expired lock is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.manager.client, []string{l.key}, l.token).Err()
}

// ClaimIdempotencyToken records that an action keyed by entity id + action
// name is being performed. It returns true exactly once per key within the
// TTL; retried sweeps see false and skip the side effect.
func (m *Manager) ClaimIdempotencyToken(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, "idem:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency token: %w", err)
	}
	return ok, nil
}

// ReleaseIdempotencyToken drops a claimed token so the action can be
// retried, used when the guarded side effect failed before completing.
func (m *Manager) ReleaseIdempotencyToken(ctx context.Context, key string) error {
	return m.client.Del(ctx, "idem:"+key).Err()
}

// IdempotencyKey builds the canonical token key for a license-scoped
// action.
func IdempotencyKey(licenseID uuid.UUID, action string) string {
	return fmt.Sprintf("%s:%s", licenseID, action)
}

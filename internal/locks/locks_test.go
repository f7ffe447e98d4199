// internal/locks/locks_test.go
package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(client), mr
}

func TestAcquireAndReleaseAssetLock(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()
	assetID := uuid.New()

	lock, err := m.AcquireAssetLock(ctx, assetID, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	require.NoError(t, lock.Release(ctx))

	// Released lock can be reacquired immediately.
	lock2, err := m.AcquireAssetLock(ctx, assetID, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock2.Release(ctx))
}

func TestAssetLockContention(t *testing.T) {
	m, _ := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assetID := uuid.New()

	lock, err := m.AcquireAssetLock(ctx, assetID, time.Minute)
	require.NoError(t, err)
	defer lock.Release(context.Background())

	_, err = m.AcquireAssetLock(ctx, assetID, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestAssetLocksAreIndependentPerAsset(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	lockA, err := m.AcquireAssetLock(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	defer lockA.Release(ctx)

	lockB, err := m.AcquireAssetLock(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	defer lockB.Release(ctx)
}

func TestReleaseOnlyOwnLock(t *testing.T) {
	m, mr := testManager(t)
	ctx := context.Background()
	assetID := uuid.New()

	lock, err := m.AcquireAssetLock(ctx, assetID, 50*time.Millisecond)
	require.NoError(t, err)

	// TTL elapses and another holder takes the lock.
	mr.FastForward(time.Second)
	other, err := m.AcquireAssetLock(ctx, assetID, time.Minute)
	require.NoError(t, err)

	// The stale holder's release must not free the new holder's lock.
	require.NoError(t, lock.Release(ctx))
	_, err = m.AcquireAssetLock(ctx, assetID, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, other.Release(ctx))
}

func TestClaimIdempotencyToken(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()
	key := IdempotencyKey(uuid.New(), "final_notice")

	claimed, err := m.ClaimIdempotencyToken(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "first claim must succeed")

	claimed, err = m.ClaimIdempotencyToken(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must be rejected")

	require.NoError(t, m.ReleaseIdempotencyToken(ctx, key))
	claimed, err = m.ClaimIdempotencyToken(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "claim after release must succeed")
}

func TestIdempotencyTokenExpiry(t *testing.T) {
	m, mr := testManager(t)
	ctx := context.Background()
	key := IdempotencyKey(uuid.New(), "auto_renew")

	claimed, err := m.ClaimIdempotencyToken(ctx, key, time.Second)
	require.NoError(t, err)
	require.True(t, claimed)

	mr.FastForward(2 * time.Second)
	claimed, err = m.ClaimIdempotencyToken(ctx, key, time.Second)
	require.NoError(t, err)
	assert.True(t, claimed, "expired token must be claimable again")
}

func TestIdempotencyKeyFormat(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String()+":renewal_offer", IdempotencyKey(id, "renewal_offer"))
}

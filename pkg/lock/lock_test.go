package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewos/renewos/pkg/lock"
)

func TestLocalLockerMutualExclusion(t *testing.T) {
	t.Parallel()

	locker := lock.NewLocalLocker()
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Independent keys do not contend.
	otherRelease, ok, err := locker.Acquire(ctx, "wake", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, otherRelease(ctx))

	require.NoError(t, release(ctx))

	_, ok, err = locker.Acquire(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

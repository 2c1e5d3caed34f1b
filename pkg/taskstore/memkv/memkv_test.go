package memkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextd/pkg/taskstore/backend"
)

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	b := NewBackend()
	_, err := b.Get(context.Background(), "missing")
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	version, err := b.Put(ctx, "k1", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), version)

	vv, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), vv.Bytes)
	require.Equal(t, uint64(1), vv.Version)
}

func TestPutIfVersionSucceedsOnMatch(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	_, err := b.PutIfVersion(ctx, "k1", []byte("v0"), 0)
	require.NoError(t, err)

	newVersion, err := b.PutIfVersion(ctx, "k1", []byte("v1"), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), newVersion)
}

func TestPutIfVersionFailsOnMismatch(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	_, err := b.PutIfVersion(ctx, "k1", []byte("v0"), 0)
	require.NoError(t, err)

	_, err = b.PutIfVersion(ctx, "k1", []byte("v1"), 5)
	require.Error(t, err)
	var vc *backend.VersionConflictError
	require.ErrorAs(t, err, &vc)
	require.Equal(t, uint64(5), vc.Expected)
	require.Equal(t, uint64(1), vc.Actual)
}

func TestPutIfVersionRejectsCreateWithNonZeroExpected(t *testing.T) {
	b := NewBackend()
	_, err := b.PutIfVersion(context.Background(), "new-key", []byte("v"), 3)
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()
	_, _ = b.Put(ctx, "k1", []byte("v"))

	ok, err := b.Delete(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Delete(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListByPrefix(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()
	_, _ = b.Put(ctx, "owner1:a", []byte("1"))
	_, _ = b.Put(ctx, "owner1:b", []byte("2"))
	_, _ = b.Put(ctx, "owner2:c", []byte("3"))

	entries, err := b.ListByPrefix(ctx, "owner1:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCleanupExpiredRemovesOnlyPastDeadline(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()
	_, _ = b.Put(ctx, "expired", []byte("v"))
	_, _ = b.Put(ctx, "alive", []byte("v"))
	_, _ = b.Put(ctx, "no-deadline", []byte("v"))

	b.SetDeadline("expired", time.Now().Add(-time.Minute))
	b.SetDeadline("alive", time.Now().Add(time.Hour))

	n, err := b.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = b.Get(ctx, "expired")
	require.ErrorIs(t, err, backend.ErrNotFound)

	_, err = b.Get(ctx, "alive")
	require.NoError(t, err)

	_, err = b.Get(ctx, "no-deadline")
	require.NoError(t, err)
}

func TestSweeperStopsOnClose(t *testing.T) {
	b := NewBackend(WithSweepInterval(10 * time.Millisecond))
	ctx := context.Background()
	_, _ = b.Put(ctx, "k", []byte("v"))
	b.SetDeadline("k", time.Now().Add(-time.Second))

	require.Eventually(t, func() bool {
		_, err := b.Get(ctx, "k")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close(ctx))
}

package suggestcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joinwise/internal/inference"
)

func snapshotWith(left, right string) *Snapshot {
	return &Snapshot{
		Suggestions: []inference.JoinSuggestion{
			{LeftTable: left, LeftColumn: left + "_id", RightTable: right, RightColumn: "id"},
		},
	}
}

func TestGetComputesOnceAndCaches(t *testing.T) {
	cache := New(time.Hour)
	key := Key{DataSourceID: "ds-1", SchemaName: "analytics"}

	var calls int32
	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshotWith("order_items", "orders"), nil
	}

	first, err := cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.False(t, first.ComputedAt.IsZero())
}

func TestGetForceRefresh(t *testing.T) {
	cache := New(time.Hour)
	key := Key{DataSourceID: "ds-1", SchemaName: "analytics"}

	var calls int32
	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshotWith("order_items", "orders"), nil
	}

	_, err := cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), key, true, compute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestInvalidate(t *testing.T) {
	cache := New(time.Hour)
	key := Key{DataSourceID: "ds-1", SchemaName: "analytics"}

	var calls int32
	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshotWith("order_items", "orders"), nil
	}

	_, err := cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)
	cache.Invalidate(key)
	_, err = cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestInvalidateDataSource(t *testing.T) {
	cache := New(time.Hour)
	keyA := Key{DataSourceID: "ds-1", SchemaName: "analytics"}
	keyB := Key{DataSourceID: "ds-1", SchemaName: "staging"}
	keyC := Key{DataSourceID: "ds-2", SchemaName: "analytics"}

	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		return snapshotWith(k.SchemaName, "orders"), nil
	}
	for _, k := range []Key{keyA, keyB, keyC} {
		_, err := cache.Get(context.Background(), k, false, compute)
		require.NoError(t, err)
	}

	cache.InvalidateDataSource("ds-1")

	_, ok := cache.lookup(keyA)
	assert.False(t, ok)
	_, ok = cache.lookup(keyB)
	assert.False(t, ok)
	_, ok = cache.lookup(keyC)
	assert.True(t, ok)
}

func TestKeysWithSeparatorInPartsStayDistinct(t *testing.T) {
	cache := New(time.Hour)
	// Both keys would concatenate to "a/b/c" under a naive join.
	keyA := Key{DataSourceID: "a/b", SchemaName: "c"}
	keyB := Key{DataSourceID: "a", SchemaName: "b/c"}
	assert.NotEqual(t, keyA.String(), keyB.String())

	var calls int32
	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshotWith(k.SchemaName, "orders"), nil
	}

	snapA, err := cache.Get(context.Background(), keyA, false, compute)
	require.NoError(t, err)
	snapB, err := cache.Get(context.Background(), keyB, false, compute)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.NotSame(t, snapA, snapB)
	assert.Equal(t, "c", snapA.Suggestions[0].LeftTable)
	assert.Equal(t, "b/c", snapB.Suggestions[0].LeftTable)
}

func TestExpiry(t *testing.T) {
	cache := New(time.Minute)
	current := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return current }
	key := Key{DataSourceID: "ds-1", SchemaName: "analytics"}

	var calls int32
	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return snapshotWith("order_items", "orders"), nil
	}

	_, err := cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = cache.Get(context.Background(), key, false, compute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	cache := New(time.Hour)
	key := Key{DataSourceID: "ds-1", SchemaName: "analytics"}

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context, k Key) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return snapshotWith("order_items", "orders"), nil
	}

	const goroutines = 16
	results := make([]*Snapshot, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := cache.Get(context.Background(), key, false, compute)
			require.NoError(t, err)
			results[i] = snap
		}(i)
	}

	// Let the goroutines pile up on the single flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i], "all callers share one complete snapshot")
	}
	require.Len(t, results[0].Suggestions, 1)
}

package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tupleFor(id string) Tuple {
	return PageTuple(id, PageQuery{Page: 1, PageSize: 25})
}

func TestCoordinator_LoadAndCache(t *testing.T) {
	var calls atomic.Int32
	c, err := NewCoordinator(func(_ context.Context, key Tuple) (string, error) {
		calls.Add(1)
		return "value-" + key.ID, nil
	})
	require.NoError(t, err)

	v, err := c.Load(context.Background(), tupleFor("a"))
	require.NoError(t, err)
	assert.Equal(t, "value-a", v)

	state, got, err := c.Current()
	assert.Equal(t, StateReady, state)
	assert.Equal(t, "value-a", got)
	assert.NoError(t, err)

	// Second load of the same tuple comes from cache.
	_, err = c.Load(context.Background(), tupleFor("a"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCoordinator_Failure(t *testing.T) {
	boom := errors.New("boom")
	c, err := NewCoordinator(func(_ context.Context, key Tuple) (string, error) {
		if key.ID == "bad" {
			return "", boom
		}
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = c.Load(context.Background(), tupleFor("bad"))
	assert.ErrorIs(t, err, boom)

	state, _, stateErr := c.Current()
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, stateErr, boom)

	// A failed tuple is not cached; recovery on the next good load.
	_, err = c.Load(context.Background(), tupleFor("good"))
	require.NoError(t, err)
	state, v, _ := c.Current()
	assert.Equal(t, StateReady, state)
	assert.Equal(t, "ok", v)
}

func TestCoordinator_StaleResponseIgnored(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	c, err := NewCoordinator(func(_ context.Context, key Tuple) (string, error) {
		if key.ID == "slow" {
			close(entered)
			<-release
		}
		return "value-" + key.ID, nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := c.Load(context.Background(), tupleFor("slow"))
		assert.NoError(t, err)
		assert.Equal(t, "value-slow", v)
	}()

	<-entered

	// Navigate away while the first load is still in flight.
	v, err := c.Load(context.Background(), tupleFor("fast"))
	require.NoError(t, err)
	assert.Equal(t, "value-fast", v)

	close(release)
	wg.Wait()

	// The late result must not displace the current page.
	state, got, _ := c.Current()
	assert.Equal(t, StateReady, state)
	assert.Equal(t, "value-fast", got)

	// But it did land in the cache for a later return visit.
	vSlow, ok := c.cache.Get(tupleFor("slow"))
	require.True(t, ok)
	assert.Equal(t, "value-slow", vSlow)
}

func TestCoordinator_Dedup(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	c, err := NewCoordinator(func(_ context.Context, key Tuple) (string, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return "value-" + key.ID, nil
	})
	require.NoError(t, err)

	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Load(context.Background(), tupleFor("same"))
			assert.NoError(t, err)
			assert.Equal(t, "value-same", v)
		}()
	}

	<-entered
	// Give the remaining loaders time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "concurrent loads of one tuple share a single fetch")
}

func TestCoordinator_Invalidate(t *testing.T) {
	var calls atomic.Int32
	c, err := NewCoordinator(func(_ context.Context, key Tuple) (string, error) {
		calls.Add(1)
		return "v", nil
	})
	require.NoError(t, err)

	_, err = c.Load(context.Background(), tupleFor("a"))
	require.NoError(t, err)
	c.Invalidate(tupleFor("a"))
	_, err = c.Load(context.Background(), tupleFor("a"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCoordinator_Reset(t *testing.T) {
	c, err := NewCoordinator(func(_ context.Context, key Tuple) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)

	_, err = c.Load(context.Background(), tupleFor("a"))
	require.NoError(t, err)

	c.Reset()
	state, v, loadErr := c.Current()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, v)
	assert.NoError(t, loadErr)
}

func TestPageTuple(t *testing.T) {
	a := PageTuple("feed-1", PageQuery{Page: 1, PageSize: 25})
	b := PageTuple("feed-1", PageQuery{Page: 2, PageSize: 25})
	c := PageTuple("feed-1", PageQuery{Page: 1, PageSize: 25})

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestTupleFlightKey_SeparatorSafe(t *testing.T) {
	q := PageQuery{Page: 1, PageSize: 2}
	a := PageTuple(`x|3`, q)
	b := PageTuple("x", PageQuery{Page: 3, PageSize: 1, EndDate: 2})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a.flightKey(), b.flightKey(), "ids containing the separator must not alias another tuple")
}

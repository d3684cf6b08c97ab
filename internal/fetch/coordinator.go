package fetch

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// State of a coordinator with respect to its current tuple.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tuple identifies one fetchable selection (entity id, page, window). Equal
// tuples mean the same page of the same thing; the struct is comparable so it
// keys the cache and the visible-state guard directly.
type Tuple struct {
	ID    string
	Query PageQuery
}

func PageTuple(id string, q PageQuery) Tuple {
	return Tuple{ID: id, Query: q}
}

// flightKey renders the tuple for singleflight, which only takes strings.
// The id is quoted so separator characters inside it cannot collide with
// another tuple's rendering.
func (t Tuple) flightKey() string {
	return fmt.Sprintf("%q|%d|%d|%d|%d", t.ID, t.Query.Page, t.Query.PageSize, t.Query.StartDate, t.Query.EndDate)
}

const defaultCacheSize = 64

// Coordinator drives page loads for one screen. It deduplicates concurrent
// loads of the same tuple, caches recent results, and ignores responses for
// tuples the caller has already navigated away from, so a slow page can never
// overwrite a newer one.
type Coordinator[T any] struct {
	load func(ctx context.Context, key Tuple) (T, error)

	group singleflight.Group
	cache *lru.Cache[Tuple, T]

	mu      sync.Mutex
	state   State
	current Tuple
	value   T
	err     error
}

func NewCoordinator[T any](load func(ctx context.Context, key Tuple) (T, error)) (*Coordinator[T], error) {
	cache, err := lru.New[Tuple, T](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Coordinator[T]{load: load, cache: cache}, nil
}

// Load makes key the current tuple and returns its value, from cache when
// possible. A late result for a superseded tuple still lands in the cache but
// leaves the visible state alone.
func (c *Coordinator[T]) Load(ctx context.Context, key Tuple) (T, error) {
	c.mu.Lock()
	c.current = key
	if v, ok := c.cache.Get(key); ok {
		c.state = StateReady
		c.value = v
		c.err = nil
		c.mu.Unlock()
		return v, nil
	}
	c.state = StateFetching
	c.err = nil
	c.mu.Unlock()

	v, err, _ := c.group.Do(key.flightKey(), func() (any, error) {
		return c.load(ctx, key)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.current == key {
			c.state = StateFailed
			c.err = err
		}
		var zero T
		return zero, err
	}

	val := v.(T)
	c.cache.Add(key, val)
	if c.current == key {
		c.state = StateReady
		c.value = val
		c.err = nil
	}
	return val, nil
}

// Invalidate drops a cached tuple, forcing the next Load to refetch.
func (c *Coordinator[T]) Invalidate(key Tuple) {
	c.cache.Remove(key)
}

// Reset clears the cache and returns the coordinator to idle.
func (c *Coordinator[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
	c.state = StateIdle
	c.current = Tuple{}
	c.err = nil
	var zero T
	c.value = zero
}

// Current reports the visible state, value and error for the current tuple.
func (c *Coordinator[T]) Current() (State, T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.value, c.err
}

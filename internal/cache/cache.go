// Package cache is a keyed fetch/cache layer for remote resources. Concurrent
// reads of one key share a single in-flight fetch, mutations bump a per-key
// version so a stale fetch can never clobber a newer seed, and subscriptions
// can poll while the resource is in a non-terminal state.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads the remote value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Options tune revalidation for one subscription.
type Options struct {
	// PollInterval enables fixed-interval polling when > 0.
	PollInterval time.Duration
	// PollWhile keeps the poll loop alive while it returns true for the last
	// fetched value. Nil polls until the subscription closes. The predicate
	// is only consulted once a value exists; before that the loop keeps
	// polling so a slow first fetch does not strand the subscriber.
	PollWhile func(last any) bool
}

// Snapshot is the current view of a key. Err and Data can both be set: a
// failed revalidation keeps the last good value. IsLoading is true only
// before the first value arrives.
type Snapshot struct {
	Data      any
	Err       error
	IsLoading bool
}

type entry struct {
	data    any
	err     error
	hasData bool
	loading bool
	stale   bool
	version uint64
	subs    map[*Subscription]struct{}
}

// Cache is safe for concurrent use. Writes to a key are serialized under one
// mutex; ordering between fetches and seeds is decided by the key version,
// not by which goroutine finishes last.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	sf      singleflight.Group
}

func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{subs: make(map[*Subscription]struct{})}
		c.entries[key] = e
	}
	return e
}

// Seed writes a value directly into the cache, as after a mutation whose
// response already carries the fresh state. Any fetch issued before the seed
// is discarded when it completes.
func (c *Cache) Seed(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.version++
	e.data = value
	e.hasData = true
	e.err = nil
	e.loading = false
	e.stale = false
	c.sf.Forget(key)
	c.broadcastLocked(e)
}

// Invalidate marks the key stale and, if anyone is subscribed, triggers an
// immediate re-fetch. With no subscribers the next Load re-fetches.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.version++
	e.stale = true
	c.sf.Forget(key)
	var fetcher Fetcher
	for sub := range e.subs {
		fetcher = sub.fetcher
		break
	}
	c.mu.Unlock()

	if fetcher != nil {
		go func() { _, _ = c.refresh(context.Background(), key, fetcher, true) }()
	}
}

// Load is a read-through get: it returns the cached value when fresh and
// fetches (deduplicated) otherwise. A fetch failure with stale data returns
// both the data and the error.
func (c *Cache) Load(ctx context.Context, key string, fetcher Fetcher) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if e.hasData && !e.stale {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()
	return c.refresh(ctx, key, fetcher, false)
}

// refresh performs one deduplicated fetch for key and applies the result
// unless a seed or invalidation outran it. When requireSub is set the result
// is also dropped if nobody is subscribed anymore by the time it lands.
func (c *Cache) refresh(ctx context.Context, key string, fetcher Fetcher, requireSub bool) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	version := e.version
	if !e.hasData {
		e.loading = true
	}
	c.mu.Unlock()

	value, err, _ := c.sf.Do(key, func() (any, error) {
		return fetcher(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if e.version != version || (requireSub && len(e.subs) == 0) {
		// A newer write won, or the last subscriber left. Keep the cache as
		// is and hand the caller the current state.
		return e.data, e.err
	}
	e.loading = false
	if err != nil {
		// The key stays stale so the next read tries again once the backend
		// recovers.
		e.err = err
	} else {
		e.data = value
		e.hasData = true
		e.err = nil
		e.stale = false
	}
	c.broadcastLocked(e)
	return e.data, e.err
}

func (c *Cache) broadcastLocked(e *entry) {
	snapshot := Snapshot{Data: e.data, Err: e.err, IsLoading: e.loading && !e.hasData}
	for sub := range e.subs {
		select {
		case sub.updates <- snapshot:
		default:
			// Drop the oldest update so a slow reader sees the newest state.
			select {
			case <-sub.updates:
			default:
			}
			sub.updates <- snapshot
		}
	}
}

// Subscription is one live view over a key. Close it to stop the poll loop
// and stop receiving updates.
type Subscription struct {
	cache     *Cache
	key       string
	fetcher   Fetcher
	opts      Options
	updates   chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe registers a subscriber for key and kicks off a fetch when the
// cached value is missing or stale. Simultaneous subscribers to one key
// share a single network call.
func (c *Cache) Subscribe(ctx context.Context, key string, fetcher Fetcher, opts Options) *Subscription {
	sub := &Subscription{
		cache:   c,
		key:     key,
		fetcher: fetcher,
		opts:    opts,
		updates: make(chan Snapshot, 8),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	e := c.entryLocked(key)
	e.subs[sub] = struct{}{}
	needsFetch := !e.hasData || e.stale
	c.mu.Unlock()

	if needsFetch {
		go func() { _, _ = c.refresh(ctx, key, fetcher, true) }()
	}
	if opts.PollInterval > 0 {
		go sub.pollLoop(ctx)
	}
	return sub
}

// Get returns the current snapshot for the subscribed key.
func (s *Subscription) Get() Snapshot {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	e := s.cache.entryLocked(s.key)
	return Snapshot{Data: e.data, Err: e.err, IsLoading: e.loading && !e.hasData}
}

// Updates delivers snapshots as they change. Stale intermediate snapshots
// may be dropped for slow readers; the latest one is always retained.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Resume forces a revalidation now, e.g. when the UI regains focus.
func (s *Subscription) Resume(ctx context.Context) {
	_, _ = s.cache.refresh(ctx, s.key, s.fetcher, true)
}

// Close unsubscribes and cancels the poll loop. In-flight fetches are
// abandoned; their results are dropped when no subscriber remains.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cache.mu.Lock()
		e := s.cache.entryLocked(s.key)
		delete(e.subs, s)
		close(s.updates)
		s.cache.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.opts.PollWhile != nil {
				s.cache.mu.Lock()
				e := s.cache.entryLocked(s.key)
				hasData, data := e.hasData, e.data
				s.cache.mu.Unlock()
				if hasData && !s.opts.PollWhile(data) {
					return
				}
			}
			_, _ = s.cache.refresh(ctx, s.key, s.fetcher, true)
		}
	}
}

// Package cache holds server-backed listing pages and record details keyed by
// their request identity. Concurrent readers of a key share one fetch, and
// invalidation guarantees later readers see data fetched after it.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wesm/modconsole/internal/clock"
	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
)

// DefaultTTL is how long a fetched value is served without refetching.
const DefaultTTL = 30 * time.Second

// Options configures a Cache.
type Options struct {
	// TTL is the freshness window. Zero uses DefaultTTL.
	TTL time.Duration
	// StaleFallback serves the last good value when a refetch fails.
	StaleFallback bool
}

// Stats are cumulative cache counters.
type Stats struct {
	Fetches int // fetches issued to the backend
	Hits    int // reads served from a fresh entry
	Joins   int // reads that joined an in-flight fetch
}

// Cache is a read-through cache over a listing.Backend.
type Cache struct {
	backend listing.Backend
	opts    Options
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	seq      uint64
	stats    Stats
	listings *space[string, *listing.Page]
	records  *space[int64, *listing.RecordDetail]
}

// New creates a cache reading through backend.
func New(backend listing.Backend, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Cache{
		backend:  backend,
		opts:     opts,
		clock:    clock.Real{},
		logger:   slog.Default(),
		listings: newSpace[string, *listing.Page]("listing"),
		records:  newSpace[int64, *listing.RecordDetail]("record"),
	}
}

// WithClock sets the clock used for freshness checks.
func (c *Cache) WithClock(clk clock.Clock) *Cache {
	c.clock = clk
	return c
}

// WithLogger sets the logger.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	c.logger = logger
	return c
}

// Listing returns the page selected by crit, with the priority filter applied
// to its records. The returned page is shared and must not be modified.
func (c *Cache) Listing(ctx context.Context, crit listing.Criteria) (*listing.Page, error) {
	crit = crit.Normalize()
	return get(ctx, c, c.listings, filter.Fingerprint(crit), func(ctx context.Context) (*listing.Page, error) {
		page, err := c.backend.ListRecords(ctx, crit)
		if err != nil {
			return nil, err
		}
		out := *page
		out.Records = listing.FilterByPriority(page.Records, crit.Priorities)
		return &out, nil
	})
}

// Record returns the detail of record id. The returned value is shared and
// must not be modified.
func (c *Cache) Record(ctx context.Context, id int64) (*listing.RecordDetail, error) {
	return get(ctx, c, c.records, id, func(ctx context.Context) (*listing.RecordDetail, error) {
		return c.backend.GetRecord(ctx, id)
	})
}

// Entry is what the cache holds for one key.
type Entry[V any] struct {
	Value    V
	HasValue bool
	Fresh    bool
	Err      error // last failed read, cleared by the next success
}

// PeekListing returns the stored state for crit without fetching.
func (c *Cache) PeekListing(crit listing.Criteria) (Entry[*listing.Page], bool) {
	return peek(c, c.listings, filter.Fingerprint(crit.Normalize()))
}

// PeekRecord returns the stored state for id without fetching.
func (c *Cache) PeekRecord(id int64) (Entry[*listing.RecordDetail], bool) {
	return peek(c, c.records, id)
}

// Invalidate marks every entry matched by p stale. Reads that start after
// Invalidate returns fetch anew and never join a fetch started before it.
func (c *Cache) Invalidate(p Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch p.kind {
	case kindRecord:
		c.records.invalidateKeyLocked(p.id)
	case kindListings:
		c.listings.invalidateAllLocked()
	case kindEverything:
		c.listings.invalidateAllLocked()
		c.records.invalidateAllLocked()
	}
	c.logger.Debug("cache invalidated", "pattern", p.String())
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// space is one key space of the cache. All fields are guarded by Cache.mu.
type space[K comparable, V any] struct {
	name    string
	entries map[K]*entry[V]
	gen     uint64
	epochs  map[K]uint64
	calls   map[callKey[K]]*call[V]
}

type entry[V any] struct {
	val       V
	has       bool
	seq       uint64 // issue order of the request that produced val
	fetchedAt time.Time
	stale     bool
	err       error // last failed read, cleared on success
}

type callKey[K comparable] struct {
	key   K
	epoch uint64
}

type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

func newSpace[K comparable, V any](name string) *space[K, V] {
	return &space[K, V]{
		name:    name,
		entries: make(map[K]*entry[V]),
		epochs:  make(map[K]uint64),
		calls:   make(map[callKey[K]]*call[V]),
	}
}

// epochLocked changes whenever k is invalidated, directly or by a wildcard.
func (s *space[K, V]) epochLocked(k K) uint64 {
	return s.gen + s.epochs[k]
}

func (s *space[K, V]) invalidateKeyLocked(k K) {
	s.epochs[k]++
	if e, ok := s.entries[k]; ok {
		e.stale = true
	}
}

func (s *space[K, V]) invalidateAllLocked() {
	s.gen++
	for _, e := range s.entries {
		e.stale = true
	}
}

func peek[K comparable, V any](c *Cache, s *space[K, V], k K) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		return Entry[V]{}, false
	}
	return Entry[V]{Value: e.val, HasValue: e.has, Fresh: freshLocked(c, e), Err: e.err}, true
}

func freshLocked[V any](c *Cache, e *entry[V]) bool {
	return e.has && !e.stale && c.clock.Now().Sub(e.fetchedAt) < c.opts.TTL
}

func get[K comparable, V any](ctx context.Context, c *Cache, s *space[K, V], k K, fetch func(context.Context) (V, error)) (V, error) {
	var zero V

	c.mu.Lock()
	if e, ok := s.entries[k]; ok && freshLocked(c, e) {
		c.stats.Hits++
		c.mu.Unlock()
		return e.val, nil
	}

	ck := callKey[K]{key: k, epoch: s.epochLocked(k)}
	cl, ok := s.calls[ck]
	if ok {
		c.stats.Joins++
	} else {
		c.seq++
		c.stats.Fetches++
		// The fetch outlives any single reader; it is cancelled only when
		// every waiter has given up.
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cl = &call[V]{done: make(chan struct{}), cancel: cancel}
		s.calls[ck] = cl
		go runFetch(fctx, c, s, ck, cl, c.seq, fetch)
	}
	cl.waiters++
	c.mu.Unlock()

	select {
	case <-cl.done:
		if cl.err == nil {
			return cl.val, nil
		}
		if c.opts.StaleFallback {
			c.mu.Lock()
			e, ok := s.entries[k]
			ok = ok && e.has
			var val V
			if ok {
				val = e.val
			}
			c.mu.Unlock()
			if ok {
				c.logger.Debug("serving stale value after failed read", "space", s.name, "key", k, "error", cl.err)
				return val, nil
			}
		}
		return zero, cl.err
	case <-ctx.Done():
		c.mu.Lock()
		cl.waiters--
		if cl.waiters == 0 {
			cl.cancel()
			if s.calls[ck] == cl {
				delete(s.calls, ck)
			}
		}
		c.mu.Unlock()
		return zero, ctx.Err()
	}
}

func runFetch[K comparable, V any](ctx context.Context, c *Cache, s *space[K, V], ck callKey[K], cl *call[V], seq uint64, fetch func(context.Context) (V, error)) {
	val, err := fetch(ctx)

	c.mu.Lock()
	if s.calls[ck] == cl {
		delete(s.calls, ck)
	}
	cl.val, cl.err = val, err
	e := s.entries[ck.key]
	if e == nil && (err == nil || ctx.Err() == nil) {
		e = &entry[V]{}
		s.entries[ck.key] = e
	}
	switch {
	case err == nil:
		// A request issued later may already have stored its result.
		if !e.has || e.seq < seq {
			e.val = val
			e.has = true
			e.seq = seq
			e.fetchedAt = c.clock.Now()
			e.err = nil
			// Invalidated while in flight: keep the value for fallback but
			// never serve it as fresh.
			e.stale = ck.epoch != s.epochLocked(ck.key)
		}
	case ctx.Err() == nil:
		e.err = err
	}
	close(cl.done)
	c.mu.Unlock()
	cl.cancel()

	if err != nil && ctx.Err() == nil {
		c.logger.Debug("cache fetch failed", "space", s.name, "key", ck.key, "error", err)
	}
}

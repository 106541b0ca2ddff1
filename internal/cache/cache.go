package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrDiscarded is returned by Pending.Wait when the caller's context
	// ended first. The shared fetch keeps running for other waiters.
	ErrDiscarded = errors.New("cache: result discarded")

	// ErrInvalidated is returned to waiters of a fetch whose key was
	// invalidated while it was in flight. Load refetches on it.
	ErrInvalidated = errors.New("cache: key invalidated during fetch")

	// ErrClosed is returned once the cache has been closed
	ErrClosed = errors.New("cache: closed")
)

// Status is the lifecycle state of a cache entry
type Status int

const (
	StatusStale Status = iota
	StatusFresh
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStale:
		return "stale"
	case StatusFresh:
		return "fresh"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Entry is a snapshot of one cached server resource
type Entry struct {
	Key           string
	Data          any
	Status        Status
	Err           error
	LastFetchedAt time.Time
}

// FetchFunc loads the value for a key from the server
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	Entry
	gen uint64 // generation of the fetch allowed to resolve this entry
}

// Cache is a keyed store of server resources with request coalescing and
// explicit invalidation. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64 // monotonic across keys so a cleared key never reuses a generation
	group   singleflight.Group

	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger

	// fetches run on this context so one caller leaving does not abort
	// the request for the others
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a cache. maxAge of 0 keeps entries fresh until invalidated.
func New(maxAge time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries: make(map[string]*entry),
		maxAge:  maxAge,
		now:     time.Now,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// MaxAge returns the freshness window, 0 meaning unbounded
func (c *Cache) MaxAge() time.Duration {
	return c.maxAge
}

// Pending is a handle on an in-flight fetch
type Pending struct {
	key string
	ch  <-chan singleflight.Result
}

// Key returns the cache key being fetched
func (p *Pending) Key() string { return p.key }

// Wait blocks until the fetch resolves or ctx ends
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case r := <-p.ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ErrDiscarded
	}
}

// Get returns the entry for key. A fresh entry comes back with a nil
// Pending. Otherwise a fetch is started, or joined if one is already in
// flight, and the returned entry carries StatusLoading.
func (c *Cache) Get(key string, fetch FetchFunc) (Entry, *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		ch := make(chan singleflight.Result, 1)
		ch <- singleflight.Result{Err: ErrClosed}
		return Entry{Key: key, Status: StatusError, Err: ErrClosed}, &Pending{key: key, ch: ch}
	}

	e, ok := c.entries[key]
	if ok && e.Status == StatusFresh && !c.expiredLocked(e) {
		return e.Entry, nil
	}

	if ok && e.Status == StatusLoading {
		// The resolve step needs c.mu, so the flight is still registered
		c.logger.Debug("cache join", "key", key)
		ch := c.group.DoChan(flightKey(key, e.gen), func() (any, error) {
			return nil, ErrInvalidated
		})
		return e.Entry, &Pending{key: key, ch: ch}
	}

	if !ok {
		e = &entry{Entry: Entry{Key: key}}
		c.entries[key] = e
	}
	c.seq++
	gen := c.seq
	e.gen = gen
	e.Status = StatusLoading
	e.Err = nil

	c.logger.Debug("cache miss", "key", key, "gen", gen)

	ch := c.group.DoChan(flightKey(key, gen), func() (any, error) {
		v, err := fetch(c.ctx)
		if !c.resolve(key, gen, v, err) {
			return nil, ErrInvalidated
		}
		return v, err
	})
	return e.Entry, &Pending{key: key, ch: ch}
}

// resolve applies a fetch result unless the entry moved on to a newer
// generation. It reports whether the result was applied.
func (c *Cache) resolve(key string, gen uint64, v any, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.gen != gen {
		c.logger.Debug("cache result dropped", "key", key, "gen", gen)
		return false
	}

	if err != nil {
		e.Status = StatusError
		e.Err = err
		e.Data = nil
		c.logger.Debug("cache fetch failed", "key", key, "error", err)
		return true
	}

	e.Status = StatusFresh
	e.Data = v
	e.Err = nil
	e.LastFetchedAt = c.now()
	return true
}

// Load returns fresh data for key, fetching it if needed. A fetch that is
// invalidated mid-flight is retried so callers never see superseded data.
func (c *Cache) Load(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	for {
		e, p := c.Get(key, fetch)
		if p == nil {
			return e.Data, nil
		}
		v, err := p.Wait(ctx)
		if errors.Is(err, ErrInvalidated) && ctx.Err() == nil {
			continue
		}
		return v, err
	}
}

// Peek returns the entry for key without fetching
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	snap := e.Entry
	if snap.Status == StatusFresh && c.expiredLocked(e) {
		snap.Status = StatusStale
	}
	return snap, true
}

// Invalidate marks key stale. An in-flight fetch for it will not be applied.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.invalidateLocked(e)
	}
}

// InvalidatePrefix marks every key starting with prefix stale
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.invalidateLocked(e)
			n++
		}
	}
	c.logger.Debug("cache invalidated prefix", "prefix", prefix, "count", n)
}

func (c *Cache) invalidateLocked(e *entry) {
	c.seq++
	e.gen = c.seq
	e.Status = StatusStale
}

// Clear drops every entry. In-flight fetches resolve into nothing.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.logger.Debug("cache cleared")
}

// Close cancels in-flight fetches and rejects further ones
func (c *Cache) Close() {
	c.cancel()
	c.Clear()
}

func (c *Cache) expiredLocked(e *entry) bool {
	return c.maxAge > 0 && c.now().Sub(e.LastFetchedAt) > c.maxAge
}

func flightKey(key string, gen uint64) string {
	return key + "#" + strconv.FormatUint(gen, 10)
}

// Fetch is the typed form of Cache.Load
func Fetch[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Load(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: key %q holds %T", key, v)
	}
	return t, nil
}

// Cached returns the fresh value for key without fetching
func Cached[T any](c *Cache, key string) (T, bool) {
	var zero T
	e, ok := c.Peek(key)
	if !ok || e.Status != StatusFresh {
		return zero, false
	}
	t, ok := e.Data.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Package querycache is an in-process cache for query results keyed by
// composite keys. Whole key families can be invalidated by prefix.
package querycache

import (
	"strings"
	"sync"
	"time"
)

// Key is a composite cache key such as ["photos", drive, "archive", "2024-03"].
type Key []string

func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix reports whether every element of prefix equals the
// element of k at the same position.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

type EventType int

const (
	EventUpdated EventType = iota
	EventInvalidated
	EventRemoved
)

type Event struct {
	Type EventType
	Key  Key
}

type entry struct {
	key       Key
	value     any
	updatedAt time.Time
	stale     bool
}

type subscription struct {
	prefix Key
	fn     func(Event)
}

// Cache stores immutable values. Callers must never mutate a value after
// Set; replace it with a new value instead.
type Cache struct {
	Store *sync.Map

	staleTime time.Duration
	now       func() time.Time

	subMutex sync.RWMutex
	subs     map[uint64]subscription
	nextSub  uint64
}

type Option func(*Cache)

// WithStaleTime marks entries stale once they are older than d.
// Zero keeps entries fresh until invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		c.staleTime = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		Store: &sync.Map{},
		now:   time.Now,
		subs:  make(map[uint64]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored for key. Stale values are still returned
// with fresh set to false so callers can serve them while refreshing.
func (c *Cache) Get(key Key) (value any, found bool, fresh bool) {
	v, ok := c.Store.Load(key.String())
	if !ok {
		return nil, false, false
	}

	e := v.(*entry)
	return e.value, true, !e.stale && !c.expired(e)
}

// GetAs is Get with a type assertion. A value of another type counts as missing.
func GetAs[T any](c *Cache, key Key) (value T, found bool, fresh bool) {
	v, found, fresh := c.Get(key)
	if !found {
		return value, false, false
	}

	typed, ok := v.(T)
	if !ok {
		return value, false, false
	}
	return typed, true, fresh
}

func (c *Cache) Set(key Key, value any) {
	c.Store.Store(key.String(), &entry{
		key:       append(Key(nil), key...),
		value:     value,
		updatedAt: c.now(),
	})
	c.notify(Event{Type: EventUpdated, Key: key})
}

// Replace stores value under key like Set but keeps an entry that is
// already stale (or expired) stale.
func (c *Cache) Replace(key Key, value any) {
	k := key.String()
	for {
		next := &entry{key: append(Key(nil), key...), value: value, updatedAt: c.now()}

		old, loaded := c.Store.LoadOrStore(k, next)
		if !loaded {
			break
		}

		e := old.(*entry)
		next.stale = e.stale || c.expired(e)
		if c.Store.CompareAndSwap(k, old, next) {
			break
		}
	}
	c.notify(Event{Type: EventUpdated, Key: key})
}

// Invalidate marks every entry under prefix as stale and returns how many were hit.
// Values stay readable until replaced or removed. An entry replaced while it
// is being invalidated keeps the new value and is marked stale as well.
func (c *Cache) Invalidate(prefix Key) int {
	var hit []Key
	c.Store.Range(func(k, v any) bool {
		e := v.(*entry)
		if !e.key.HasPrefix(prefix) {
			return true
		}

		for {
			if e.stale {
				break
			}
			stale := &entry{key: e.key, value: e.value, updatedAt: e.updatedAt, stale: true}
			if c.Store.CompareAndSwap(k, v, stale) {
				break
			}

			var ok bool
			if v, ok = c.Store.Load(k); !ok {
				return true
			}
			e = v.(*entry)
		}

		hit = append(hit, e.key)
		return true
	})

	for _, key := range hit {
		c.notify(Event{Type: EventInvalidated, Key: key})
	}
	return len(hit)
}

// Remove deletes every entry under prefix and returns how many were removed.
// An entry set again while Remove runs is kept.
func (c *Cache) Remove(prefix Key) int {
	var hit []Key
	c.Store.Range(func(k, v any) bool {
		e := v.(*entry)
		if e.key.HasPrefix(prefix) && c.Store.CompareAndDelete(k, v) {
			hit = append(hit, e.key)
		}
		return true
	})

	for _, key := range hit {
		c.notify(Event{Type: EventRemoved, Key: key})
	}
	return len(hit)
}

// Subscribe calls fn for every change of a key under prefix.
// fn runs synchronously on the goroutine that changed the cache.
func (c *Cache) Subscribe(prefix Key, fn func(Event)) (unsubscribe func()) {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = subscription{prefix: append(Key(nil), prefix...), fn: fn}

	return func() {
		c.subMutex.Lock()
		defer c.subMutex.Unlock()
		delete(c.subs, id)
	}
}

func (c *Cache) notify(ev Event) {
	c.subMutex.RLock()
	var fns []func(Event)
	for _, sub := range c.subs {
		if ev.Key.HasPrefix(sub.prefix) {
			fns = append(fns, sub.fn)
		}
	}
	c.subMutex.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Cache) expired(e *entry) bool {
	return c.staleTime > 0 && c.now().Sub(e.updatedAt) >= c.staleTime
}

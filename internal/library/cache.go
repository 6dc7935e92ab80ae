package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mwantia/gophotos/internal/syncer"
	"github.com/mwantia/gophotos/pkg/log"
	"github.com/mwantia/gophotos/pkg/querycache"
	"github.com/mwantia/gophotos/pkg/remote"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDebounce   = 5 * time.Second
	DefaultMaxRetries = 5
	DefaultRetryBase  = 500 * time.Millisecond
)

type Config struct {
	Debounce        time.Duration
	MaxRetries      int
	RetryBase       time.Duration
	RebuildPageSize int
}

type libraryRef struct {
	drive remote.TargetDrive
	typ   Type
}

func (r libraryRef) key() querycache.Key {
	return CacheKey(r.drive, r.typ)
}

// CacheKey is the query cache key holding the metadata of one library.
func CacheKey(drive remote.TargetDrive, t Type) querycache.Key {
	return querycache.Key{syncer.PhotoLibraryKey, drive.Key(), string(t)}
}

// Cache serves library metadata from the query cache and writes local
// changes back to the remote after a debounce window.
type Cache struct {
	mutex sync.Mutex

	remote *Remote
	cache  *querycache.Cache
	log    log.LoggerService
	cfg    Config

	group singleflight.Group
	wg    sync.WaitGroup

	dirty  map[string]libraryRef
	saving map[string]*sync.Mutex
	timer  *time.Timer
	closed bool
}

func NewCache(r *Remote, cache *querycache.Cache, logger log.LoggerService, cfg Config) *Cache {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.RebuildPageSize <= 0 {
		cfg.RebuildPageSize = DefaultRebuildPageSize
	}

	return &Cache{
		remote: r,
		cache:  cache,
		log:    logger,
		cfg:    cfg,
		dirty:  make(map[string]libraryRef),
		saving: make(map[string]*sync.Mutex),
	}
}

// Get returns the metadata of a library, loading, merging or rebuilding it
// when it is missing or stale. Concurrent loads of one library are shared.
func (c *Cache) Get(ctx context.Context, drive remote.TargetDrive, t Type) (*Metadata, error) {
	ref := libraryRef{drive: drive, typ: t}

	md, found, fresh := querycache.GetAs[*Metadata](c.cache, ref.key())
	if found && fresh && md != nil {
		return md, nil
	}

	// Every waiter selects on its own ctx; the shared load runs detached.
	ch := c.group.DoChan(ref.key().String(), func() (any, error) {
		return c.load(context.WithoutCancel(ctx), ref)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Metadata), nil
	}
}

// Peek returns the cached metadata without loading it.
func (c *Cache) Peek(drive remote.TargetDrive, t Type) (*Metadata, bool) {
	md, found, _ := querycache.GetAs[*Metadata](c.cache, CacheKey(drive, t))
	return md, found && md != nil
}

func (c *Cache) load(ctx context.Context, ref libraryRef) (*Metadata, error) {
	local, _ := c.Peek(ref.drive, ref.typ)

	var since int64
	if local != nil {
		since = local.LastCursor
	}

	server, err := c.remote.Fetch(ctx, ref.drive, ref.typ, since)
	if err != nil {
		if local != nil {
			c.log.Warn("Serving cached '%s' library after failed refresh: %v", ref.typ, err)
			return local, nil
		}
		return nil, err
	}

	c.mutex.Lock()
	current, _ := c.Peek(ref.drive, ref.typ)
	switch {
	case server != nil && current != nil:
		merged := Merge(server, current)
		c.cache.Set(ref.key(), merged)
		c.mutex.Unlock()
		return merged, nil

	case server != nil:
		c.cache.Set(ref.key(), server)
		c.mutex.Unlock()
		return server, nil

	case current != nil:
		c.cache.Set(ref.key(), current)
		c.mutex.Unlock()
		return current, nil
	}
	c.mutex.Unlock()

	return c.rebuild(ctx, ref)
}

func (c *Cache) rebuild(ctx context.Context, ref libraryRef) (*Metadata, error) {
	c.log.Info("Rebuilding '%s' library of drive %s", ref.typ, ref.drive.Key())

	headers, err := c.remote.ScanPhotos(ctx, ref.drive, ref.typ, c.cfg.RebuildPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild %s library: %w", ref.typ, err)
	}
	md := Build(headers)

	c.mutex.Lock()
	c.cache.Set(ref.key(), md)
	if c.closed {
		c.mutex.Unlock()
		return md, nil
	}
	c.wg.Add(1)
	c.mutex.Unlock()

	go func() {
		defer c.wg.Done()

		lock := c.saveLock(ref)
		lock.Lock()
		defer lock.Unlock()

		saved, err := c.remote.Save(context.WithoutCancel(ctx), ref.drive, ref.typ, md)
		if err != nil {
			c.log.Error("Failed to save rebuilt '%s' library: %v", ref.typ, err)
			return
		}
		c.adoptIdentity(ref, saved)
	}()

	return md, nil
}

// AddDay counts one more photo on day. It returns false if the library is
// not loaded.
func (c *Cache) AddDay(drive remote.TargetDrive, t Type, day time.Time) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ref := libraryRef{drive: drive, typ: t}
	current, ok := c.Peek(drive, t)
	if !ok {
		return false
	}

	c.replace(ref.key(), current.AddDay(day))
	c.markDirty(ref)
	return true
}

// UpdateCount overwrites the count of the month of day. It returns false
// if the library is not loaded or does not know the month.
func (c *Cache) UpdateCount(drive remote.TargetDrive, t Type, day time.Time, count int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ref := libraryRef{drive: drive, typ: t}
	current, ok := c.Peek(drive, t)
	if !ok {
		return false
	}

	updated, ok := current.UpdateCount(day, count)
	if !ok {
		return false
	}

	c.replace(ref.key(), updated)
	c.markDirty(ref)
	return true
}

// Invalidate marks a library stale. Unflushed changes are kept and merged
// into the next load.
func (c *Cache) Invalidate(drive remote.TargetDrive, t Type) {
	c.cache.Invalidate(CacheKey(drive, t))
}

// Watch reloads libraries of drive in the background whenever they are
// invalidated, e.g. by a push notification for their metadata file. The
// returned function stops watching.
func (c *Cache) Watch(ctx context.Context, drive remote.TargetDrive) (stop func()) {
	return c.cache.Subscribe(querycache.Key{syncer.PhotoLibraryKey, drive.Key()}, func(ev querycache.Event) {
		if ev.Type != querycache.EventInvalidated || len(ev.Key) < 3 {
			return
		}
		t, err := ParseType(ev.Key[2])
		if err != nil {
			return
		}

		c.mutex.Lock()
		if c.closed {
			c.mutex.Unlock()
			return
		}
		c.wg.Add(1)
		c.mutex.Unlock()

		go func() {
			defer c.wg.Done()
			if _, err := c.Get(ctx, drive, t); err != nil && ctx.Err() == nil {
				c.log.Warn("Failed to reload invalidated '%s' library: %v", t, err)
			}
		}()
	})
}

// Dirty reports how many libraries wait for a flush.
func (c *Cache) Dirty() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.dirty)
}

// Flush writes every dirty library. Each library is written independently;
// the first failure is returned and failed libraries stay dirty.
func (c *Cache) Flush(ctx context.Context) error {
	c.mutex.Lock()
	pending := c.dirty
	c.dirty = make(map[string]libraryRef)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mutex.Unlock()

	var g errgroup.Group
	for _, ref := range pending {
		g.Go(func() error {
			if err := c.flushOne(ctx, ref); err != nil {
				c.log.Error("Failed to flush '%s' library: %v", ref.typ, err)
				c.requeue(ref)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops the debounce timer, flushes pending changes and waits for
// background saves.
func (c *Cache) Close(ctx context.Context) error {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()

	err := c.Flush(ctx)
	c.wg.Wait()
	return err
}

func (c *Cache) flushOne(ctx context.Context, ref libraryRef) error {
	lock := c.saveLock(ref)
	lock.Lock()
	defer lock.Unlock()

	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries), retry.NewExponential(c.cfg.RetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		current, ok := c.Peek(ref.drive, ref.typ)
		if !ok {
			return nil
		}

		saved, err := c.remote.Save(ctx, ref.drive, ref.typ, current)
		switch {
		case errors.Is(err, remote.ErrVersionConflict):
			latest, ferr := c.remote.Fetch(ctx, ref.drive, ref.typ, 0)
			if ferr != nil {
				return ferr
			}

			c.mutex.Lock()
			if cur, ok := c.Peek(ref.drive, ref.typ); ok {
				if latest != nil {
					c.replace(ref.key(), Merge(latest, cur))
				} else {
					c.replace(ref.key(), cur.withIdentity("", ""))
				}
			}
			c.mutex.Unlock()

			c.log.Debug("Version conflict on '%s' library, retrying with merged copy", ref.typ)
			return retry.RetryableError(err)

		case errors.Is(err, remote.ErrNotFound):
			c.mutex.Lock()
			if cur, ok := c.Peek(ref.drive, ref.typ); ok {
				c.replace(ref.key(), cur.withIdentity("", ""))
			}
			c.mutex.Unlock()
			return retry.RetryableError(err)

		case err != nil:
			return err
		}

		c.adoptIdentity(ref, saved)
		return nil
	})
}

// adoptIdentity applies the remote identity of saved to the current copy,
// which may already contain newer local changes.
func (c *Cache) adoptIdentity(ref libraryRef, saved *Metadata) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	current, ok := c.Peek(ref.drive, ref.typ)
	if !ok {
		return
	}
	c.replace(ref.key(), current.withIdentity(saved.FileID, saved.VersionTag))
}

// replace stores md without making a stale entry fresh.
func (c *Cache) replace(key querycache.Key, md *Metadata) {
	c.cache.Replace(key, md)
}

func (c *Cache) markDirty(ref libraryRef) {
	c.dirty[ref.key().String()] = ref
	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.Debounce, c.onDebounce)
}

func (c *Cache) onDebounce() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.wg.Add(1)
	c.mutex.Unlock()

	defer c.wg.Done()
	_ = c.Flush(context.Background())
}

func (c *Cache) requeue(ref libraryRef) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.dirty[ref.key().String()] = ref
}

func (c *Cache) saveLock(ref libraryRef) *sync.Mutex {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	k := ref.key().String()
	lock, ok := c.saving[k]
	if !ok {
		lock = &sync.Mutex{}
		c.saving[k] = lock
	}
	return lock
}

// Package cache holds computed report results for a short TTL. There is no
// invalidation other than expiry: the reporting store is written by another
// system that does not notify us.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrLockNotObtained is returned by a Locker when another process holds the key.
var ErrLockNotObtained = errors.New("cache: lock not obtained")

// Store is a byte-oriented key/value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Locker serialises the computation of one key across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// DefaultLoadTimeout bounds a shared load when none is configured.
const DefaultLoadTimeout = 30 * time.Second

// Cache fronts a Store. A nil *Cache, or one with a zero TTL, is a pass-through.
type Cache struct {
	store       Store
	locker      Locker
	ttl         time.Duration
	loadTimeout time.Duration
	logger      zerolog.Logger
	group       singleflight.Group
}

func New(store Store, ttl time.Duration, logger zerolog.Logger) *Cache {
	c := &Cache{store: store, ttl: ttl, loadTimeout: DefaultLoadTimeout, logger: logger}
	if l, ok := store.(Locker); ok {
		c.locker = l
	}
	return c
}

// WithLoadTimeout sets the deadline of a shared load. Non-positive values
// are ignored.
func (c *Cache) WithLoadTimeout(d time.Duration) *Cache {
	if c != nil && d > 0 {
		c.loadTimeout = d
	}
	return c
}

// Enabled reports whether results are actually cached.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

// Key builds a cache key from the branch, report name and any further parts
// such as the resolved range bounds.
func Key(branch, report string, parts ...string) string {
	return "wellness:" + branch + ":" + report + ":" + strings.Join(parts, ":")
}

// Fetch returns the cached value for key, or calls load and caches its
// result. Store failures are logged and fall back to load; they never fail
// the request.
//
// Concurrent callers for the same key share one load. The load runs on a
// context that keeps ctx's values but not its cancellation, bounded by the
// load timeout, so one caller going away does not fail the others. Each
// caller still returns as soon as its own ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if !c.Enabled() {
		return load(ctx)
	}

	if v, ok := c.lookup(ctx, key, new(T)); ok {
		return *v.(*T), nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		if c.locker != nil {
			release, lerr := c.locker.Lock(lctx, "lock:"+key, c.ttl)
			switch {
			case lerr == nil:
				defer release()
				// another process may have filled it while we waited
				if v, ok := c.lookup(lctx, key, new(T)); ok {
					return *v.(*T), nil
				}
			case errors.Is(lerr, ErrLockNotObtained):
				c.logger.Debug().Str("key", key).Msg("cache lock busy, computing anyway")
			default:
				c.logger.Warn().Err(lerr).Str("key", key).Msg("cache lock failed")
			}
		}

		v, err := load(lctx)
		if err != nil {
			return v, err
		}
		c.save(lctx, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Cache) lookup(ctx context.Context, key string, dest interface{}) (interface{}, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return nil, false
	}
	return dest, true
}

func (c *Cache) save(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

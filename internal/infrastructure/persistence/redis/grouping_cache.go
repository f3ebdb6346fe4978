package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/metrocollab/grouper/internal/domain/grouping"
)

// GroupingCache stores grouping results by input fingerprint. Identical
// input always yields an identical assignment, so a hit can be served as is.
type GroupingCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewGroupingCache creates a GroupingCache. A zero ttl keeps entries forever.
func NewGroupingCache(cache *Cache, ttl time.Duration) *GroupingCache {
	return &GroupingCache{cache: cache, ttl: ttl}
}

// Get returns the cached result for fingerprint. The bool is false on a miss.
func (g *GroupingCache) Get(ctx context.Context, fingerprint string) (*grouping.Result, bool, error) {
	var res grouping.Result
	err := g.cache.Get(ctx, GroupingKey(fingerprint), &res)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// Set stores res under its fingerprint.
func (g *GroupingCache) Set(ctx context.Context, res *grouping.Result) error {
	if res == nil {
		return ErrCacheNilValue
	}
	return g.cache.Set(ctx, GroupingKey(res.Fingerprint), res, g.ttl)
}

// Invalidate drops the cached result for fingerprint.
func (g *GroupingCache) Invalidate(ctx context.Context, fingerprint string) error {
	return g.cache.Delete(ctx, GroupingKey(fingerprint))
}

// Lock takes an exclusive lock on resource for ttl. ok is false when someone
// else holds it. The returned release func is safe to call more than once.
func (g *GroupingCache) Lock(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	key := LockKey(resource)
	token := uuid.NewString()

	ok, err = g.cache.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}

	return func(ctx context.Context) error {
		return g.cache.ReleaseIfOwner(ctx, key, token)
	}, true, nil
}

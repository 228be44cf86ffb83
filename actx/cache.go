package actx

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheMap is the storage behind the transform and program caches. The
// lookup contract is identical for both implementations; only the eviction
// policy differs.
type cacheMap[V any] interface {
	Get(key string) (V, bool)
	Add(key string, v V)
	Len() int
}

// newCacheMap picks the cache implementation: unbounded when bound is zero,
// LRU-bounded otherwise.
func newCacheMap[V any](bound int) (cacheMap[V], error) {
	if bound <= 0 {
		return make(plainCache[V]), nil
	}
	inner, err := lru.New[string, V](bound)
	if err != nil {
		return nil, fmt.Errorf("actx: creating bounded cache: %w", err)
	}
	return &lruCache[V]{inner: inner}, nil
}

// plainCache never evicts. Growth is bounded only by the number of distinct
// canonical expressions seen over the context's lifetime.
type plainCache[V any] map[string]V

func (c plainCache[V]) Get(key string) (V, bool) {
	v, ok := c[key]
	return v, ok
}

func (c plainCache[V]) Add(key string, v V) { c[key] = v }

func (c plainCache[V]) Len() int { return len(c) }

type lruCache[V any] struct {
	inner *lru.Cache[string, V]
}

func (c *lruCache[V]) Get(key string) (V, bool) { return c.inner.Get(key) }

func (c *lruCache[V]) Add(key string, v V) { c.inner.Add(key, v) }

func (c *lruCache[V]) Len() int { return c.inner.Len() }

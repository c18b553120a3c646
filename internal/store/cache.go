package store

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultResultCacheSize is the number of (query, limit) pairs whose hits
// are kept in memory.
const DefaultResultCacheSize = 256

// resultCache memoizes search hits between writes. Every mutation of the
// index must call purge.
type resultCache struct {
	lru *lru.Cache[string, []Hit]
}

func newResultCache(size int) *resultCache {
	if size <= 0 {
		return &resultCache{}
	}
	c, _ := lru.New[string, []Hit](size)
	return &resultCache{lru: c}
}

func cacheKey(query string, limit uint) string {
	return strconv.FormatUint(uint64(limit), 10) + "\x00" + query
}

func (c *resultCache) get(query string, limit uint) ([]Hit, bool) {
	if c.lru == nil {
		return nil, false
	}
	hits, ok := c.lru.Get(cacheKey(query, limit))
	if !ok {
		return nil, false
	}
	return cloneHits(hits), true
}

func (c *resultCache) add(query string, limit uint, hits []Hit) {
	if c.lru == nil {
		return
	}
	c.lru.Add(cacheKey(query, limit), cloneHits(hits))
}

func (c *resultCache) purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

func (c *resultCache) len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

func cloneHits(hits []Hit) []Hit {
	out := make([]Hit, len(hits))
	copy(out, hits)
	return out
}

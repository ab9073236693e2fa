package apiclient

import (
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type cacheEntry struct {
	resp *Response
	tags []string
}

// responseCache holds successful GET responses keyed by method and URL and
// tagged so mutations can evict what they change.
type responseCache struct {
	items *ttlcache.Cache[string, cacheEntry]
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		items: ttlcache.New[string, cacheEntry](
			ttlcache.WithTTL[string, cacheEntry](ttl),
			ttlcache.WithDisableTouchOnHit[string, cacheEntry](),
		),
	}
}

func cacheKey(method, url string) string {
	return method + " " + url
}

func (c *responseCache) get(key string) (*Response, bool) {
	item := c.items.Get(key)
	if item == nil {
		return nil, false
	}
	resp := item.Value().resp.clone()
	resp.Cached = true
	return resp, true
}

func (c *responseCache) set(key string, resp *Response, tags []string) {
	c.items.Set(key, cacheEntry{resp: resp.clone(), tags: tags}, ttlcache.DefaultTTL)
}

// invalidate evicts every entry carrying any of tags.
func (c *responseCache) invalidate(tags []string) int {
	evicted := 0
	for key, item := range c.items.Items() {
		if slices.ContainsFunc(item.Value().tags, func(t string) bool {
			return slices.Contains(tags, t)
		}) {
			c.items.Delete(key)
			evicted++
		}
	}
	return evicted
}

func (c *responseCache) purge() {
	c.items.DeleteAll()
}

func (c *responseCache) size() int {
	return c.items.Len()
}

// Package cache provides the in-memory TTL cache shared by the aggregation handlers.
package cache

import (
	"net/url"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
)

// Cache is the get/set contract the aggregation service depends on.
// A ttl of zero or less selects the cache's default TTL.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// TTLCache is an unbounded in-memory cache. Entries expire a fixed duration
// after being written; expired entries are invisible to Get and are swept by
// a background janitor.
type TTLCache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

// NewTTLCache creates a cache with the given default TTL and janitor interval
func NewTTLCache(defaultTTL, cleanupInterval time.Duration) *TTLCache {
	return &TTLCache{
		store:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

// Get returns the value for key, or false on a miss or an expired entry
func (c *TTLCache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores value under key, overwriting any existing entry
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.store.Set(key, value, ttl)
}

// ItemCount returns the number of entries, including expired ones not yet swept
func (c *TTLCache) ItemCount() int {
	return c.store.ItemCount()
}

// Flush drops every entry
func (c *TTLCache) Flush() {
	c.store.Flush()
}

// Key derives a cache key from an endpoint name and its query parameters.
// Parameter names are sorted and each parameter's values are split on commas,
// trimmed, de-duplicated and sorted, so equivalent requests share an entry.
func Key(endpoint string, params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, name := range names {
		values := lo.FlatMap(params[name], func(v string, _ int) []string { return strings.Split(v, ",") })
		values = lo.Uniq(lo.Compact(lo.Map(values, func(v string, _ int) string { return strings.TrimSpace(v) })))
		if len(values) == 0 {
			continue
		}
		sort.Strings(values)
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

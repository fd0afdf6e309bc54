package ratecard

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const channelsKey = "channels"

// CachedStore memoizes another Store. Results are kept exactly as the
// wrapped store returned them, so ordering and channel matching follow it.
type CachedStore struct {
	next  Store
	cache *gocache.Cache
}

// NewCachedStore wraps next with an expiring in-process cache.
func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// lookupKey identifies an id set independent of order and repeats.
func lookupKey(ids []int64) (string, []int64) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sorted := append([]int64(nil), unique...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "lookup:" + strings.Join(parts, ","), unique
}

func channelKey(channel string) string {
	return "channel:" + channel
}

// Lookup implements Store.
func (c *CachedStore) Lookup(ctx context.Context, ids []int64) ([]Program, error) {
	key, unique := lookupKey(ids)
	if v, ok := c.cache.Get(key); ok {
		return append([]Program(nil), v.([]Program)...), nil
	}
	programs, err := c.next.Lookup(ctx, unique)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, programs)
	return append([]Program(nil), programs...), nil
}

// Channels implements Store.
func (c *CachedStore) Channels(ctx context.Context) ([]string, error) {
	if v, ok := c.cache.Get(channelsKey); ok {
		return append([]string(nil), v.([]string)...), nil
	}
	channels, err := c.next.Channels(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(channelsKey, channels)
	return append([]string(nil), channels...), nil
}

// ProgramsByChannel implements Store.
func (c *CachedStore) ProgramsByChannel(ctx context.Context, channel string) ([]Program, error) {
	if v, ok := c.cache.Get(channelKey(channel)); ok {
		return append([]Program(nil), v.([]Program)...), nil
	}
	programs, err := c.next.ProgramsByChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(channelKey(channel), programs)
	return append([]Program(nil), programs...), nil
}

// Flush drops every cached entry, e.g. after the rate card is edited.
func (c *CachedStore) Flush() {
	c.cache.Flush()
}

// Package teamcache caches a repo's team membership list for one hour, so
// the dispatcher's "is this commenter on the team" checks don't hit the
// source host on every webhook.
package teamcache

import (
	"context"
	"sync"
	"time"
)

// TTL is how long a cached team membership list is trusted before a refetch,
// per spec.md §4.9.
const TTL = time.Hour

// Fetcher retrieves a team's current membership from the source host.
type Fetcher func(ctx context.Context, repoOwner, teamSlug string) ([]string, error)

type entry struct {
	members []string
	cachedAt time.Time
}

// Cache is a TTL cache of team memberships keyed by (repoOwner, teamSlug),
// with lazy expiry: an expired entry is refetched the next time it's looked
// up, not on a timer, and is still returned if that refetch fails.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	fetch   Fetcher
	now     func() time.Time
}

// New creates a Cache that calls fetch on a miss or an expired entry.
func New(fetch Fetcher) *Cache {
	return &Cache{entries: make(map[string]entry), fetch: fetch, now: time.Now}
}

func key(repoOwner, teamSlug string) string {
	return repoOwner + "/" + teamSlug
}

// Members returns the cached membership of (repoOwner, teamSlug), refetching
// if the entry is missing or older than TTL.
func (c *Cache) Members(ctx context.Context, repoOwner, teamSlug string) ([]string, error) {
	k := key(repoOwner, teamSlug)

	c.mu.Lock()
	e, ok := c.entries[k]
	c.mu.Unlock()

	if ok && c.now().Sub(e.cachedAt) < TTL {
		return e.members, nil
	}

	members, err := c.fetch(ctx, repoOwner, teamSlug)
	if err != nil {
		// A stale-but-present entry is better than failing the whole
		// dispatch over a transient source-host error.
		if ok {
			return e.members, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[k] = entry{members: members, cachedAt: c.now()}
	c.mu.Unlock()

	return members, nil
}

// IsMember reports whether login is currently a member of (repoOwner,
// teamSlug).
func (c *Cache) IsMember(ctx context.Context, repoOwner, teamSlug, login string) (bool, error) {
	members, err := c.Members(ctx, repoOwner, teamSlug)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == login {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached entry for (repoOwner, teamSlug), forcing the
// next lookup to refetch.
func (c *Cache) Invalidate(repoOwner, teamSlug string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(repoOwner, teamSlug))
}

package conversation

import (
	"fmt"
	"sync"
	"time"

	"parley-server/internal/domain/query"
)

const defaultListingTTL = 2 * time.Minute

type cachedPage struct {
	conversations []*Conversation
	total         int64
	fetchedAt     time.Time
}

// ListingCache is an in-memory cache of paginated conversation listings,
// keyed per owner. Any mutation for an owner drops every cached page for that
// owner so subsequent list reads observe the change.
type ListingCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	pages map[string]map[string]cachedPage // owner -> page key -> page
}

// NewListingCache creates a listing cache with the default TTL.
func NewListingCache() *ListingCache {
	return NewListingCacheWithTTL(defaultListingTTL)
}

// NewListingCacheWithTTL creates a cache with a custom TTL (for testing).
func NewListingCacheWithTTL(ttl time.Duration) *ListingCache {
	return &ListingCache{
		ttl:   ttl,
		pages: make(map[string]map[string]cachedPage),
	}
}

func pageKey(p query.Pagination) string {
	n := p.Normalized()
	return fmt.Sprintf("%d/%d", n.Page, n.Limit)
}

// Get returns a cached page and the owner's total, if present and fresh.
func (c *ListingCache) Get(owner string, p query.Pagination) ([]*Conversation, int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	owned, ok := c.pages[owner]
	if !ok {
		return nil, 0, false
	}
	page, ok := owned[pageKey(p)]
	if !ok || time.Since(page.fetchedAt) >= c.ttl {
		return nil, 0, false
	}
	return page.conversations, page.total, true
}

// Put stores one page of the owner's listing with the total it was served
// alongside.
func (c *ListingCache) Put(owner string, p query.Pagination, conversations []*Conversation, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	owned, ok := c.pages[owner]
	if !ok {
		owned = make(map[string]cachedPage)
		c.pages[owner] = owned
	}
	owned[pageKey(p)] = cachedPage{
		conversations: conversations,
		total:         total,
		fetchedAt:     time.Now(),
	}
}

// Invalidate drops every cached page for the owner.
func (c *ListingCache) Invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, owner)
}

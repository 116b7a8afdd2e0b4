package session

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a size-bounded LRU with per-entry expiry.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
}

type cacheItem struct {
	key       string
	sess      Session
	expiresAt time.Time
}

// NewCache creates a cache holding at most maxSize sessions, each for at
// most ttl.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

func (c *Cache) Get(token string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[token]
	if !exists {
		return Session{}, false
	}

	item := elem.Value.(*cacheItem)
	if !c.now().Before(item.expiresAt) {
		c.removeElement(elem)
		return Session{}, false
	}

	c.lru.MoveToFront(elem)
	return item.sess, true
}

// Set stores s until the earlier of the cache TTL and the session expiry.
func (c *Cache) Set(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(expiresAt) {
		expiresAt = s.ExpiresAt
	}
	item := &cacheItem{key: s.Token, sess: s, expiresAt: expiresAt}

	if elem, exists := c.items[s.Token]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[s.Token] = c.lru.PushFront(item)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *Cache) Delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[token]; exists {
		c.removeElement(elem)
	}
}

func (c *Cache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns how many went.
func (c *Cache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if !now.Before(elem.Value.(*cacheItem).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

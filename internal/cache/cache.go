package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	TTL             time.Duration
	MaxSize         int
	CleanupInterval time.Duration
	Now             func() time.Time
	// OnCleanup, if set, is called after every janitor pass with the number
	// of entries it purged.
	OnCleanup func(purged int)
}

const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxSize         = 10000
	DefaultCleanupInterval = time.Minute
)

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Size      int    `json:"size"`
	Evictions uint64 `json:"evictions"`
}

type key struct {
	user       string
	permission string
}

type entry struct {
	key       key
	allowed   bool
	expiresAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu           sync.Mutex
	items        map[key]*list.Element
	order        *list.List
	byUser       map[string]map[string]struct{}
	byPermission map[string]map[string]struct{}

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a cache and, if opts.CleanupInterval is positive (or left at
// its default), starts the janitor goroutine.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		ttl:          opts.TTL,
		maxSize:      opts.MaxSize,
		now:          opts.Now,
		items:        make(map[key]*list.Element),
		order:        list.New(),
		byUser:       make(map[string]map[string]struct{}),
		byPermission: make(map[string]map[string]struct{}),
		done:         make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.janitor(opts.CleanupInterval, opts.OnCleanup)
	}
	return c
}

func (c *Cache) janitor(interval time.Duration, onCleanup func(int)) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purged := c.PurgeExpired()
			if onCleanup != nil {
				onCleanup(purged)
			}
		case <-c.done:
			return
		}
	}
}

// Get returns the cached decision. Expired entries count as misses and are
// removed on the spot.
func (c *Cache) Get(userID, permission string) (allowed bool, ok bool) {
	k := key{user: userID, permission: permission}
	now := c.now()

	c.mu.Lock()
	el, found := c.items[k]
	if found {
		e := el.Value.(*entry)
		if now.Before(e.expiresAt) {
			c.order.MoveToFront(el)
			allowed = e.allowed
			c.mu.Unlock()
			c.hits.Add(1)
			return allowed, true
		}
		c.removeLocked(el)
	}
	c.mu.Unlock()

	c.misses.Add(1)
	return false, false
}

// Put stores a decision using the cache's TTL.
func (c *Cache) Put(userID, permission string, allowed bool) {
	c.PutTTL(userID, permission, allowed, c.ttl)
}

// PutTTL stores a decision with an explicit TTL. Non-positive TTLs are ignored.
func (c *Cache) PutTTL(userID, permission string, allowed bool, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	k := key{user: userID, permission: permission}
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[k]; ok {
		e := el.Value.(*entry)
		e.allowed = allowed
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions.Add(1)
	}

	el := c.order.PushFront(&entry{key: k, allowed: allowed, expiresAt: expiresAt})
	c.items[k] = el
	addIndex(c.byUser, userID, permission)
	addIndex(c.byPermission, permission, userID)
}

// InvalidateUser drops every entry for userID and returns how many were removed.
func (c *Cache) InvalidateUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	perms := c.byUser[userID]
	n := 0
	for p := range perms {
		if el, ok := c.items[key{user: userID, permission: p}]; ok {
			c.removeLocked(el)
			n++
		}
	}
	return n
}

// InvalidatePermission drops every entry for permission across all users.
func (c *Cache) InvalidatePermission(permission string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := c.byPermission[permission]
	n := 0
	for u := range users {
		if el, ok := c.items[key{user: u, permission: permission}]; ok {
			c.removeLocked(el)
			n++
		}
	}
	return n
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[key]*list.Element)
	c.order.Init()
	c.byUser = make(map[string]map[string]struct{})
	c.byPermission = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

// PurgeExpired removes expired entries and returns how many were removed.
func (c *Cache) PurgeExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeLocked(el)
			n++
		}
		el = prev
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit/miss counters and the current size.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Size:      c.Len(),
		Evictions: c.evictions.Load(),
	}
}

// Stop terminates the janitor goroutine and waits for it. It is idempotent.
func (c *Cache) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

func (c *Cache) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.key)
	removeIndex(c.byUser, e.key.user, e.key.permission)
	removeIndex(c.byPermission, e.key.permission, e.key.user)
}

func addIndex(idx map[string]map[string]struct{}, outer, inner string) {
	set, ok := idx[outer]
	if !ok {
		set = make(map[string]struct{})
		idx[outer] = set
	}
	set[inner] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, outer, inner string) {
	set, ok := idx[outer]
	if !ok {
		return
	}
	delete(set, inner)
	if len(set) == 0 {
		delete(idx, outer)
	}
}

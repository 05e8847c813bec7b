package directory

import (
	"sync"
	"time"

	"github.com/iamnishu22/chatapp/internal/domain"
)

// profileCache is a session-scoped TTL cache for resolved profiles
type profileCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	ttl  time.Duration
}

type cacheEntry struct {
	profile   *domain.UserProfile
	expiresAt time.Time
}

func newProfileCache(ttl time.Duration) *profileCache {
	return &profileCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
	}
}

func (c *profileCache) get(id string) (*domain.UserProfile, bool) {
	c.mu.RLock()
	entry, exists := c.data[id]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.invalidate(id)
		return nil, false
	}
	return entry.profile, true
}

func (c *profileCache) set(profile *domain.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[profile.ID] = &cacheEntry{
		profile:   profile,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *profileCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, id)
}

func (c *profileCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*cacheEntry)
}

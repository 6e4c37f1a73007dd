package probe

import "sync"

// HostCache remembers the last verdict per hostname for the duration of one
// annotation run. Safe for concurrent use; a nil *HostCache is an always
// empty cache.
type HostCache struct {
	mu sync.RWMutex
	m  map[string]bool
}

func NewHostCache() *HostCache {
	return &HostCache{m: make(map[string]bool)}
}

func (c *HostCache) Get(host string) (passed, ok bool) {
	if c == nil || host == "" {
		return false, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	passed, ok = c.m[host]
	return passed, ok
}

// Record stores one verdict under every given hostname in a single critical
// section. Empty names are ignored.
func (c *HostCache) Record(passed bool, hosts ...string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hosts {
		if h != "" {
			c.m[h] = passed
		}
	}
}

func (c *HostCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

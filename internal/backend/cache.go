package backend

import "sync"

// Cache is the process-wide map of backend handles keyed by
// (kind, config) pairs. Handles are created on first lookup and never
// removed; their lifetime is the lifetime of the process.
type Cache struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{handles: make(map[string]*Handle)}
}

// Handle returns the handle stored under key, creating it with build when the
// key is new. key must uniquely identify the backend kind together with its
// configuration (e.g. "whispercpp:/models/ggml-base.en.bin"); two sessions
// deriving the same key share one backend instance.
func (c *Cache) Handle(key, kind string, build Builder) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[key]; ok {
		return h
	}
	h := NewHandle(kind, build)
	c.handles[key] = h
	return h
}

// Close closes every built handle. Called once at process shutdown.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, h := range c.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

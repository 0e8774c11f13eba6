package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// MemorySessionCache is the fallback session store used when Redis is
// unavailable. Sessions do not survive a restart.
type MemorySessionCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemorySessionCache creates an empty in-process session cache
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{entries: make(map[string]memoryEntry)}
}

// SetSession stores a session payload under the token with a TTL
func (c *MemorySessionCache) SetSession(_ context.Context, token string, session interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[token] = memoryEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// GetSession loads a session payload by token into dest
func (c *MemorySessionCache) GetSession(_ context.Context, token string, dest interface{}) error {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return errors.New("session not found")
	}
	return json.Unmarshal(entry.payload, dest)
}

// DeleteSession removes a session token
func (c *MemorySessionCache) DeleteSession(_ context.Context, token string) error {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
	return nil
}

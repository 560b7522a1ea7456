package keyring

import (
	"sync"
	"time"
)

// PasswordCache holds the last-used password in memory for a bounded TTL so
// the user is not re-prompted within a short operational window. Single
// global slot: caching a new password replaces the previous one. This is a
// documented reduced-security convenience, the cache must never reach
// durable storage.
type PasswordCache struct {
	lock     *sync.Mutex
	password string
	timer    *time.Timer
	ttl      time.Duration
	gen      uint64
}

// NewPasswordCache returns a cache whose entries expire after ttl.
func NewPasswordCache(ttl time.Duration) *PasswordCache {
	return &PasswordCache{lock: &sync.Mutex{}, ttl: ttl}
}

// Cache stores the password, replacing any previous entry and restarting
// the expiry timer.
func (c *PasswordCache) Cache(password string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.password = password
	c.rearmLocked()
}

// Get returns the cached password, or the empty string if none is cached.
func (c *PasswordCache) Get() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.password
}

// Clear drops the cached password and stops the expiry timer.
func (c *PasswordCache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.clearLocked()
}

// Refresh extends the expiry of the current entry without changing the
// password. No-op if nothing is cached.
func (c *PasswordCache) Refresh() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if len(c.password) <= 0 || c.timer == nil {
		return
	}
	c.rearmLocked()
}

// rearmLocked starts a fresh expiry and invalidates any timer already in
// flight. Requires c.lock held.
func (c *PasswordCache) rearmLocked() {
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(gen) })
}

// expire only clears the entry the timer was armed for: a fired expiry that
// was blocked on the mutex while a new password came in must not wipe it.
func (c *PasswordCache) expire(gen uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if gen != c.gen {
		return
	}
	c.clearLocked()
}

func (c *PasswordCache) clearLocked() {
	c.password = ""
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Package replay detects tokens that are presented more than once within
// their lifetime.
package replay

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of tokens an LRUCache remembers by default.
const DefaultSize = 10000

// Cache records tokens that have been seen.
type Cache interface {
	// TryAdd records token until expires. It returns false when the token
	// is already recorded or cannot be stored.
	TryAdd(token string, expires time.Time) bool

	// TryFind reports whether token is recorded and has not expired.
	TryFind(token string) bool
}

// LRUCache is a Cache bounded in size. When full, the least recently seen
// token is forgotten.
type LRUCache struct {
	mu    sync.Mutex
	cache *lru.Cache[[sha256.Size]byte, time.Time]
	now   func() time.Time
}

var _ Cache = (*LRUCache)(nil)

// Option is how options for the LRUCache are set up.
type Option func(*lruOptions) error

type lruOptions struct {
	size int
	now  func() time.Time
}

// WithSize sets the number of tokens remembered.
func WithSize(size int) Option {
	return func(o *lruOptions) error {
		if size <= 0 {
			return errors.New("size must be positive")
		}
		o.size = size
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *lruOptions) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// NewLRUCache returns an empty LRUCache.
func NewLRUCache(opts ...Option) (*LRUCache, error) {
	o := &lruOptions{size: DefaultSize, now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	cache, err := lru.New[[sha256.Size]byte, time.Time](o.size)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay cache: %w", err)
	}
	return &LRUCache{cache: cache, now: o.now}, nil
}

// Tokens are keyed by digest so the cache never holds a usable credential.
func cacheKey(token string) [sha256.Size]byte {
	return sha256.Sum256([]byte(token))
}

func (c *LRUCache) TryAdd(token string, expires time.Time) bool {
	if token == "" {
		return false
	}
	key := cacheKey(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findLocked(key) {
		return false
	}
	c.cache.Add(key, expires)
	return true
}

func (c *LRUCache) TryFind(token string) bool {
	if token == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(cacheKey(token))
}

func (c *LRUCache) findLocked(key [sha256.Size]byte) bool {
	expires, ok := c.cache.Get(key)
	if !ok {
		return false
	}
	if !expires.IsZero() && !c.now().Before(expires) {
		c.cache.Remove(key)
		return false
	}
	return true
}

// Len returns the number of tokens held, expired ones included.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

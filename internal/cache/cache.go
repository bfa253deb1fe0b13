// ABOUTME: In-memory caching for OpenSSF Scorecard results to reduce API calls.
// ABOUTME: Uses TTL-based expiration to balance data freshness with API rate limits.

package cache

import (
	"sync"
	"time"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"

	"github.com/sirupsen/logrus"
)

type CacheEntry struct {
	Data      *types.ScorecardResult
	ExpiresAt time.Time
}

type ScorecardCache struct {
	cache  map[string]*CacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	logger *logrus.Logger
}

func NewScorecardCache(logger *logrus.Logger) *ScorecardCache {
	cache := &ScorecardCache{
		cache:  make(map[string]*CacheEntry),
		ttl:    1 * time.Hour, // Scorecards are recomputed at most daily
		logger: logger,
	}

	// Start cleanup goroutine
	go cache.startCleanup()

	return cache
}

// Get returns the cached scorecard for a repository, or nil on a miss.
func (c *ScorecardCache) Get(repository string) *types.ScorecardResult {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[repository]
	if !exists {
		return nil
	}

	// Check if entry has expired
	if time.Now().After(entry.ExpiresAt) {
		// Don't delete here to avoid write lock in read operation
		// Cleanup will handle expired entries
		return nil
	}

	c.logger.WithField("repository", repository).Debug("Cache hit")
	return entry.Data
}

func (c *ScorecardCache) Set(repository string, result *types.ScorecardResult) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[repository] = &CacheEntry{
		Data:      result,
		ExpiresAt: time.Now().Add(c.ttl),
	}

	c.logger.WithField("repository", repository).Debug("Cached scorecard")
}

func (c *ScorecardCache) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute) // Cleanup every 10 minutes
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *ScorecardCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	expiredCount := 0

	for repository, entry := range c.cache {
		if now.After(entry.ExpiresAt) {
			delete(c.cache, repository)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.WithFields(logrus.Fields{
			"expired_entries":   expiredCount,
			"remaining_entries": len(c.cache),
		}).Debug("Cache cleanup completed")
	}
}

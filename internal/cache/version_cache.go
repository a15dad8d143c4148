// Package cache provides an in-process LRU cache for version catalog
// lookups, so a check-in doesn't need a database round trip just to
// confirm a target version still exists.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sam-dm/deployment-manager/internal/models"
)

// VersionCache caches Version rows keyed by their version string.
type VersionCache struct {
	lru *lru.Cache[string, *models.Version]
}

// NewVersionCache creates a cache holding up to size entries.
func NewVersionCache(size int) (*VersionCache, error) {
	c, err := lru.New[string, *models.Version](size)
	if err != nil {
		return nil, err
	}
	return &VersionCache{lru: c}, nil
}

func (c *VersionCache) Get(version string) (*models.Version, bool) {
	return c.lru.Get(version)
}

func (c *VersionCache) Put(v *models.Version) {
	c.lru.Add(v.Version, v)
}

// Invalidate removes a version from the cache; this store never mutates
// versions, so the only reason to invalidate is a fresh upload reusing a
// version string after a failed earlier attempt.
func (c *VersionCache) Invalidate(version string) {
	c.lru.Remove(version)
}

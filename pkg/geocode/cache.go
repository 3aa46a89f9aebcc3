package geocode

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"describer/pkg/models"
)

// Cached memoizes lookups, including misses. Errors are not cached.
type Cached struct {
	next  Geocoder
	cache *lru.Cache[string, *models.Location]
}

// NewCached wraps next with an LRU of size entries
func NewCached(next Geocoder, size int) (*Cached, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, *models.Location](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Lookup(ctx context.Context, query string) (*models.Location, error) {
	if loc, ok := c.cache.Get(query); ok {
		return copyLocation(loc), nil
	}

	loc, err := c.next.Lookup(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Add(query, copyLocation(loc))
	return loc, nil
}

// Len returns the number of cached queries
func (c *Cached) Len() int { return c.cache.Len() }

func copyLocation(loc *models.Location) *models.Location {
	if loc == nil {
		return nil
	}
	cp := *loc
	return &cp
}

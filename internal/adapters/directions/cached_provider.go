package directions

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

// CachedProvider memoizes routes by the exact (origin, destination) pair.
// Repeated identical requests (e.g. re-selecting the same stand from the
// same spot) skip the external API call.
type CachedProvider struct {
	inner ports.DirectionsProvider
	cache *gocache.Cache
}

func NewCachedProvider(inner ports.DirectionsProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func cacheKey(origin, destination domain.Coordinate) string {
	return fmt.Sprintf("%v,%v|%v,%v", origin.Lat, origin.Lon, destination.Lat, destination.Lon)
}

func (c *CachedProvider) GetRoute(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
	key := cacheKey(origin, destination)
	if v, ok := c.cache.Get(key); ok {
		r := *v.(*domain.Route)
		return &r, nil
	}

	r, err := c.inner.GetRoute(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, r)
	cp := *r
	return &cp, nil
}

// Flush drops every cached route.
func (c *CachedProvider) Flush() {
	c.cache.Flush()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// DefaultSearchTTL bounds how long a cached result page lives
const DefaultSearchTTL = 10 * time.Minute

// SearchCache stores remote search result pages in Redis.
// Keys include the catalog version so a data refresh never serves old pages.
type SearchCache struct {
	client  *redis.Client
	version string
	ttl     time.Duration
}

// NewSearchCache creates a new search cache
func NewSearchCache(client *redis.Client, version string, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultSearchTTL
	}
	return &SearchCache{
		client:  client,
		version: version,
		ttl:     ttl,
	}
}

// Key returns the cache key for a normalized query
func (c *SearchCache) Key(sport models.Sport, query string, limit int) string {
	return fmt.Sprintf("catalog:search:%s:%s:%s:%d",
		c.version, sport, strings.ToLower(strings.TrimSpace(query)), limit)
}

// Get returns a cached page. ok is false on a miss.
func (c *SearchCache) Get(ctx context.Context, sport models.Sport, query string, limit int) ([]models.PlayerRecord, bool, error) {
	data, err := c.client.Get(ctx, c.Key(sport, query, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading search cache: %w", err)
	}

	var results []models.PlayerRecord
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, fmt.Errorf("unmarshaling cached results: %w", err)
	}
	return results, true, nil
}

// Set stores a page
func (c *SearchCache) Set(ctx context.Context, sport models.Sport, query string, limit int, results []models.PlayerRecord) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	return c.client.Set(ctx, c.Key(sport, query, limit), data, c.ttl).Err()
}

// Ping checks the connection for health reporting
func (c *SearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

package redis

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// CatalogSource is the catalog behind the cache.
type CatalogSource interface {
	quest.Catalog
	task.Catalog
}

// CatalogCache is a read-through cache for catalog lookups.
// Redis failures fall back to the source; they never fail a lookup.
type CatalogCache struct {
	cache  *Cache
	source CatalogSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewCatalogCache decorates source with Redis caching. A zero ttl means TTLCatalog.
func NewCatalogCache(cache *Cache, source CatalogSource, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	return &CatalogCache{
		cache:  cache,
		source: source,
		ttl:    ttl,
		logger: logger.With("component", "catalog_cache"),
	}
}

// GetQuest implements quest.Catalog.
func (c *CatalogCache) GetQuest(ctx context.Context, questID string) (*quest.Quest, error) {
	key := QuestKey(questID)

	var cached quest.Quest
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	q, err := c.source.GetQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, q)
	return q, nil
}

// ListQuests implements quest.Catalog.
func (c *CatalogCache) ListQuests(ctx context.Context, filter quest.Filter) ([]quest.Quest, error) {
	key := questListKey(filter)

	var cached []quest.Quest
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	quests, err := c.source.ListQuests(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, quests)
	return quests, nil
}

// GetTask implements task.Catalog.
func (c *CatalogCache) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	key := TaskKey(taskID)

	var cached task.Task
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	t, err := c.source.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, t)
	return t, nil
}

// Invalidate drops every cached catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, "catalog:*")
}

func (c *CatalogCache) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

// questListKey is stable for equal filters regardless of ID order.
func questListKey(f quest.Filter) string {
	ids := append([]string(nil), f.IDs...)
	sort.Strings(ids)
	return PrefixQuestList + string(f.Type) + "|" + f.DescriptionContains + "|" + strings.Join(ids, ",")
}

var (
	_ quest.Catalog = (*CatalogCache)(nil)
	_ task.Catalog  = (*CatalogCache)(nil)
)

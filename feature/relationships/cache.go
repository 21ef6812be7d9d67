package relationships

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// UnknownKind is stored for nodes whose kind cannot be resolved.
const UnknownKind = "unknown"

// KindFetcher resolves the kind of a node from its detail record.
type KindFetcher interface {
	FetchNodeKind(ctx context.Context, id string) (string, error)
}

// KindCache memoizes node kinds for the duration of one run.
// It is safe for concurrent use; concurrent lookups of the same id share one fetch.
type KindCache struct {
	fetcher KindFetcher
	logger  *zap.Logger

	mu    sync.RWMutex
	kinds map[string]string
	sf    singleflight.Group
}

// NewKindCache creates an empty cache backed by fetcher.
func NewKindCache(fetcher KindFetcher, logger *zap.Logger) *KindCache {
	return &KindCache{
		fetcher: fetcher,
		logger:  logger,
		kinds:   make(map[string]string),
	}
}

// Resolve returns the kind of id, fetching it on first use.
// A failed or empty lookup resolves to UnknownKind and is cached as such.
// Only a cancelled context is returned as an error, and nothing is cached then.
func (c *KindCache) Resolve(ctx context.Context, id string) (string, error) {
	c.mu.RLock()
	kind, ok := c.kinds[id]
	c.mu.RUnlock()
	if ok {
		return kind, nil
	}

	v, err, _ := c.sf.Do(id, func() (interface{}, error) {
		c.mu.RLock()
		kind, ok := c.kinds[id]
		c.mu.RUnlock()
		if ok {
			return kind, nil
		}

		kind, err := c.fetcher.FetchNodeKind(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Kind lookup failed", zap.String("entity_id", id), zap.Error(err))
			kind = UnknownKind
		}
		if kind == "" {
			kind = UnknownKind
		}

		c.mu.Lock()
		c.kinds[id] = kind
		c.mu.Unlock()
		return kind, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of cached kinds.
func (c *KindCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kinds)
}

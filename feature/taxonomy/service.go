package taxonomy

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// KindLister lists the node kinds known to the appliance.
type KindLister interface {
	FetchNodeKinds(ctx context.Context) ([]string, error)
}

// Service relays the appliance taxonomy. Results are cached for ttl and
// concurrent misses share one upstream call.
type Service struct {
	lister KindLister
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	kinds   []string
	fetched time.Time
	sf      singleflight.Group
}

// NewService creates a taxonomy service. A zero ttl disables caching.
func NewService(lister KindLister, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{lister: lister, ttl: ttl, logger: logger}
}

// Kinds returns the sorted node kinds.
func (s *Service) Kinds(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	kinds, fresh := s.kinds, s.ttl > 0 && s.kinds != nil && time.Since(s.fetched) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return kinds, nil
	}

	v, err, _ := s.sf.Do("kinds", func() (interface{}, error) {
		kinds, err := s.lister.FetchNodeKinds(ctx)
		if err != nil {
			return nil, err
		}
		sorted := append([]string(nil), kinds...)
		sort.Strings(sorted)

		s.mu.Lock()
		s.kinds = sorted
		s.fetched = time.Now()
		s.mu.Unlock()
		return sorted, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

package relationships

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKinds struct {
	kinds map[string]string
	fail  map[string]bool
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeKinds) FetchNodeKind(ctx context.Context, id string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fail[id] {
		return "", errors.New("node unavailable")
	}
	return f.kinds[id], nil
}

func TestKindCacheMemoizes(t *testing.T) {
	fetcher := &fakeKinds{kinds: map[string]string{"n1": "Host"}, delay: 20 * time.Millisecond}
	cache := NewKindCache(fetcher, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kind, err := cache.Resolve(context.Background(), "n1")
			assert.NoError(t, err)
			assert.Equal(t, "Host", kind)
		}()
	}
	wg.Wait()

	kind, err := cache.Resolve(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Host", kind)
	assert.EqualValues(t, 1, fetcher.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestKindCacheFailuresResolveToUnknown(t *testing.T) {
	fetcher := &fakeKinds{kinds: map[string]string{}, fail: map[string]bool{"bad": true}}
	cache := NewKindCache(fetcher, zap.NewNop())

	kind, err := cache.Resolve(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, UnknownKind, kind)

	kind, err = cache.Resolve(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, UnknownKind, kind)

	_, _ = cache.Resolve(context.Background(), "bad")
	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestKindCacheDoesNotCacheCancellation(t *testing.T) {
	fetcher := &fakeKinds{kinds: map[string]string{"n1": "Host"}, delay: time.Second}
	cache := NewKindCache(fetcher, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cache.Resolve(ctx, "n1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, cache.Len())
}

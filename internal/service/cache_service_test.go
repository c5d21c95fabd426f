package service

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

	"github.com/noah-isme/gradebook-api/internal/repository"
)

type cachedPayload struct {
	Value int `json:"value"`
}

func TestCacheServiceRememberComputesOnce(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetricsService()
	cache := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), metrics, time.Minute, zap.NewNop(), true)

	var calls int32
	release := make(chan struct{})
	compute := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &cachedPayload{Value: 42}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, hit, err := cache.Remember(ctx, "stats:class:1", 0, &cachedPayload{}, compute)
			assert.NoError(t, err)
			assert.False(t, hit)
			assert.Equal(t, 42, value.(*cachedPayload).Value)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	value, hit, err := cache.Remember(ctx, "stats:class:1", 0, &cachedPayload{}, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, value.(*cachedPayload).Value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestCacheServiceRememberPropagatesComputeErrors(t *testing.T) {
	cache := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), nil, time.Minute, zap.NewNop(), true)
	boom := errors.New("boom")

	_, _, err := cache.Remember(context.Background(), "k", 0, &cachedPayload{}, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	hit, err := cache.Get(context.Background(), "k", &cachedPayload{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabledAlwaysComputes(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), nil, time.Minute, zap.NewNop(), false)
	var calls int
	for i := 0; i < 2; i++ {
		_, hit, err := cache.Remember(ctx, "k", 0, &cachedPayload{}, func() (interface{}, error) {
			calls++
			return &cachedPayload{Value: calls}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)

	var nilCache *CacheService
	value, hit, err := nilCache.Remember(ctx, "k", 0, &cachedPayload{}, func() (interface{}, error) {
		return &cachedPayload{Value: 7}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, value.(*cachedPayload).Value)
	assert.NoError(t, nilCache.Invalidate(ctx, "stats:*"))
}

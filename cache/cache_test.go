package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cache"
)

func TestFIFOEvictsOldestInsert(t *testing.T) {
	fifo := cache.NewFIFO[int](10)

	for i := range 11 {
		added, _ := fifo.Add(fmt.Sprintf("key%d", i), i)
		require.True(t, added)

		// Lookups must not refresh an entry's position.
		_, ok := fifo.Get("key0")
		if i < 10 {
			require.True(t, ok)
		}
	}

	assert.Equal(t, 10, fifo.Len())
	assert.False(t, fifo.Contains("key0"))
	assert.True(t, fifo.Contains("key1"))
	assert.True(t, fifo.Contains("key10"))
}

func TestFIFOKeepsFirstValue(t *testing.T) {
	fifo := cache.NewFIFO[string](2)

	fifo.Add("a", "first")
	fifo.Add("b", "b")
	added, evicted := fifo.Add("a", "second")
	assert.False(t, added)
	assert.Empty(t, evicted)

	value, ok := fifo.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", value)
	assert.Equal(t, []string{"a", "b"}, fifo.Keys())

	_, evicted = fifo.Add("c", "c")
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, []string{"b", "c"}, fifo.Keys())
}

func TestFIFOUnbounded(t *testing.T) {
	fifo := cache.NewFIFO[int](0)
	for i := range 1000 {
		fifo.Add(fmt.Sprint(i), i)
	}
	assert.Equal(t, 1000, fifo.Len())
}

func TestLoaderDeduplicatesConcurrentMisses(t *testing.T) {
	loader := cache.NewLoader[string]("test", 10)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, _, err := loader.GetOrFetch(context.Background(), "key", fetch)
			assert.NoError(t, err)
			results[i] = value
		}()
	}

	// Give the goroutines time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, result := range results {
		assert.Equal(t, "value", result)
	}

	value, cached, err := loader.GetOrFetch(context.Background(), "key", fetch)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "value", value)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	loader := cache.NewLoader[int]("test", 10)
	fetchErr := errors.New("backend down")

	_, _, err := loader.GetOrFetch(context.Background(), "key", func(context.Context) (int, error) {
		return 0, fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)
	assert.Equal(t, 0, loader.Len())

	value, cached, err := loader.GetOrFetch(context.Background(), "key", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, loader.Len())
}

func TestLoaderSharedFetchOutlivesCancelledCaller(t *testing.T) {
	loader := cache.NewLoader[string]("test", 10)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return "value", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := loader.GetOrFetch(firstCtx, "key", fetch)
		firstErr <- err
	}()
	<-started

	secondValue := make(chan string, 1)
	secondErr := make(chan error, 1)
	go func() {
		value, _, err := loader.GetOrFetch(context.Background(), "key", fetch)
		secondValue <- value
		secondErr <- err
	}()
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, "value", <-secondValue)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, loader.Len())
}

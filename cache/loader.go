package cache

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
	"hermannm.dev/cube/metrics"
	"hermannm.dev/devlog/log"
)

// Loader is a FIFO cache in front of a fetch function. Concurrent misses on the same key share a
// single fetch, and failed fetches are never stored.
type Loader[V any] struct {
	name    string
	entries *FIFO[V]
	flight  singleflight.Group
}

// NewLoader creates a loader whose name labels its metrics and log lines.
func NewLoader[V any](name string, capacity int) *Loader[V] {
	return &Loader[V]{name: name, entries: NewFIFO[V](capacity)}
}

// FetchFunc fetches the value for a key that is not in the cache.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// GetOrFetch returns the cached value for key, or calls fetch and caches its result. cached
// reports whether the value was served without calling fetch.
//
// The shared fetch is detached from the cancellation of the caller that started it, so one caller
// giving up does not fail the others waiting on the same key. A cancelled caller returns its own
// context error right away.
func (loader *Loader[V]) GetOrFetch(
	ctx context.Context,
	key string,
	fetch FetchFunc[V],
) (value V, cached bool, err error) {
	if value, ok := loader.entries.Get(key); ok {
		metrics.CacheHit(loader.name)
		return value, true, nil
	}
	metrics.CacheMiss(loader.name)

	flightCtx := context.WithoutCancel(ctx)
	flight := loader.flight.DoChan(key, func() (any, error) {
		// Another flight may have stored the key between our lookup and now.
		if value, ok := loader.entries.Get(key); ok {
			return value, nil
		}

		value, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}

		if _, evicted := loader.entries.Add(key, value); len(evicted) > 0 {
			metrics.CacheEvicted(loader.name, len(evicted))
			log.Debug(
				"evicted cache entries",
				slog.String("cache", loader.name),
				slog.Int("count", len(evicted)),
			)
		}
		return value, nil
	})

	var result singleflight.Result
	select {
	case result = <-flight:
	case <-ctx.Done():
		return value, false, ctx.Err()
	}
	if result.Err != nil {
		return value, false, result.Err
	}

	value, ok := result.Val.(V)
	if !ok {
		return value, false, fmt.Errorf(
			"unexpected type from %s cache flight: got %T", loader.name, result.Val,
		)
	}
	return value, false, nil
}

func (loader *Loader[V]) Get(key string) (V, bool) {
	return loader.entries.Get(key)
}

func (loader *Loader[V]) Len() int {
	return loader.entries.Len()
}

func (loader *Loader[V]) Keys() []string {
	return loader.entries.Keys()
}

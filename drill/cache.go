// Package drill holds the lazily materialized coordinate trees that selectors navigate, and the
// cache deduplicating the drill requests that populate them.
package drill

import (
	"context"
	"log/slog"

	"hermannm.dev/cube/cache"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/metrics"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// Fetcher returns the children of the coordinate at value in the named dimension. Implementations
// decide which space the dimension is looked up in.
type Fetcher interface {
	Children(ctx context.Context, dimension string, value []string) ([]cube.Child, error)
}

// Cache memoizes drill responses by (space, dimension, value), so every coordinate is fetched from
// the backend at most once, also when requested concurrently.
type Cache struct {
	source cube.DrillFetcher
	loader *cache.Loader[[]cube.Child]
}

// NewCache creates a drill cache over source. A capacity of 0 keeps every response.
func NewCache(source cube.DrillFetcher, capacity int) *Cache {
	return &Cache{source: source, loader: cache.NewLoader[[]cube.Child]("drill", capacity)}
}

func (drillCache *Cache) Drill(ctx context.Context, query cube.DrillQuery) ([]cube.Child, error) {
	key, err := query.Key()
	if err != nil {
		return nil, err
	}

	children, _, err := drillCache.loader.GetOrFetch(
		ctx,
		key,
		func(ctx context.Context) ([]cube.Child, error) {
			log.Debug("drilling", slog.String("query", key))
			children, err := drillCache.source.Drill(ctx, query)
			metrics.Fetched("drill", err)
			return children, err
		},
	)
	if err != nil {
		return nil, wrap.Errorf(
			err, "failed to drill '%s' in dimension '%s'", cube.Path(query.Value...), query.Dimension,
		)
	}
	return children, nil
}

func (drillCache *Cache) Len() int {
	return drillCache.loader.Len()
}

// Bind returns a Fetcher that drills in the space returned by space at the time of each call.
func (drillCache *Cache) Bind(space func() (string, error)) Fetcher {
	return boundFetcher{cache: drillCache, space: space}
}

type boundFetcher struct {
	cache *Cache
	space func() (string, error)
}

func (fetcher boundFetcher) Children(
	ctx context.Context,
	dimension string,
	value []string,
) ([]cube.Child, error) {
	space, err := fetcher.space()
	if err != nil {
		return nil, err
	}

	return fetcher.cache.Drill(
		ctx,
		cube.DrillQuery{Space: space, Dimension: dimension, Value: value},
	)
}

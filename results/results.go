// Package results caches aggregation results by encoded selection state.
package results

import (
	"context"
	"io"

	"hermannm.dev/cube/cache"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/metrics"
	"hermannm.dev/wrap"
)

// DefaultCapacity is the number of results kept when no capacity is configured.
const DefaultCapacity = 10

type Source interface {
	cube.AggregationFetcher
	cube.Exporter
}

// Cache is a FIFO cache of aggregation results. Results carrying a server error are returned as
// errors and never cached.
type Cache struct {
	source Source
	loader *cache.Loader[cube.Result]
}

func NewCache(source Source, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{source: source, loader: cache.NewLoader[cube.Result]("results", capacity)}
}

// GetOrFetch returns the result for state, fetching it from the source on a miss.
func (results *Cache) GetOrFetch(
	ctx context.Context,
	state cube.SelectionState,
) (result cube.Result, cached bool, err error) {
	key, err := state.Encode()
	if err != nil {
		return cube.Result{}, false, err
	}

	result, cached, err = results.loader.GetOrFetch(
		ctx,
		key,
		func(ctx context.Context) (cube.Result, error) {
			result, err := results.source.Dice(ctx, state)
			if err == nil && result.Error != "" {
				err = &cube.ServerError{Message: result.Error}
			}
			metrics.Fetched("dice", err)
			return result, err
		},
	)
	if err != nil {
		return cube.Result{}, false, wrap.Error(err, "failed to fetch aggregation result")
	}
	return result, cached, nil
}

// Export writes the full result of state in the given format. It always goes to the source.
func (results *Cache) Export(
	ctx context.Context,
	state cube.SelectionState,
	format cube.Format,
	output io.Writer,
) error {
	err := results.source.Export(ctx, state, format, output)
	metrics.Fetched("export", err)
	if err != nil {
		return wrap.Errorf(err, "failed to export result as %s", format)
	}
	return nil
}

func (results *Cache) Len() int {
	return results.loader.Len()
}

// Keys returns the encoded states of the cached results, oldest first.
func (results *Cache) Keys() []string {
	return results.loader.Keys()
}

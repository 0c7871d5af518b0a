// Package cache provides the bounded, insertion-ordered caches used for drill and aggregation
// results.
package cache

import (
	"container/list"
	"sync"
)

// FIFO is a map bounded by capacity that evicts its oldest inserted entry when full. Lookups do
// not affect eviction order, and once a key is stored its entry is never replaced. A capacity of 0
// or less means unbounded.
type FIFO[V any] struct {
	mu       sync.RWMutex
	entries  map[string]*list.Element
	order    *list.List
	capacity int
}

type fifoEntry[V any] struct {
	key   string
	value V
}

func NewFIFO[V any](capacity int) *FIFO[V] {
	return &FIFO[V]{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

func (cache *FIFO[V]) Get(key string) (value V, ok bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	element, ok := cache.entries[key]
	if !ok {
		return value, false
	}
	return element.Value.(fifoEntry[V]).value, true
}

// Add stores value under key unless the key is already present, and returns the keys evicted to
// make room (oldest first).
func (cache *FIFO[V]) Add(key string, value V) (added bool, evicted []string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if _, exists := cache.entries[key]; exists {
		return false, nil
	}

	cache.entries[key] = cache.order.PushBack(fifoEntry[V]{key: key, value: value})

	for cache.capacity > 0 && cache.order.Len() > cache.capacity {
		oldest := cache.order.Front()
		cache.order.Remove(oldest)

		oldestKey := oldest.Value.(fifoEntry[V]).key
		delete(cache.entries, oldestKey)
		evicted = append(evicted, oldestKey)
	}

	return true, evicted
}

func (cache *FIFO[V]) Contains(key string) bool {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	_, ok := cache.entries[key]
	return ok
}

func (cache *FIFO[V]) Len() int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	return cache.order.Len()
}

// Keys returns the stored keys, oldest first.
func (cache *FIFO[V]) Keys() []string {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	keys := make([]string, 0, cache.order.Len())
	for element := cache.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(fifoEntry[V]).key)
	}
	return keys
}

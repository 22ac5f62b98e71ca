// Package loader provides request-scoped batched lookups for derived
// experiment aggregates. Connection resolvers register every parent id
// up front; the first Load of an aggregate flushes all registered keys
// with one grouped query, and results are cached per key so identical
// keys within a request never refetch.
package loader

import (
	"context"
	"sort"
	"sync"

	"experiment-graphql/internal/store"
)

// Loader batches and caches one aggregate keyed by experiment id.
// V is the per-key result; a key absent from the fetch result is cached
// as not-found so repeat lookups stay cheap.
type Loader[V any] struct {
	mu      sync.Mutex
	fetch   func(ctx context.Context, keys []int64) (map[int64]V, error)
	cache   map[int64]entry[V]
	pending map[int64]struct{}
}

type entry[V any] struct {
	value V
	found bool
}

// NewLoader creates a loader over a batch fetch function.
func NewLoader[V any](fetch func(ctx context.Context, keys []int64) (map[int64]V, error)) *Loader[V] {
	return &Loader[V]{
		fetch:   fetch,
		cache:   make(map[int64]entry[V]),
		pending: make(map[int64]struct{}),
	}
}

// Register marks keys for inclusion in the next flush. No query runs
// until a Load needs a value, so registering costs nothing for
// aggregates the request never reads.
func (l *Loader[V]) Register(keys ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		if _, ok := l.cache[key]; ok {
			continue
		}
		l.pending[key] = struct{}{}
	}
}

// Load returns the value for one key, flushing all pending keys in a
// single batch query if the key is not yet cached. The second return
// reports whether the key had a result.
func (l *Loader[V]) Load(ctx context.Context, key int64) (V, bool, error) {
	l.mu.Lock()
	if cached, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return cached.value, cached.found, nil
	}
	l.pending[key] = struct{}{}
	batch := make([]int64, 0, len(l.pending))
	for pendingKey := range l.pending {
		batch = append(batch, pendingKey)
	}
	l.mu.Unlock()
	// Deterministic key order keeps the generated SQL stable.
	sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })

	fetched, err := l.fetch(ctx, batch)
	if err != nil {
		var zero V
		return zero, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, batchKey := range batch {
		delete(l.pending, batchKey)
		if _, ok := l.cache[batchKey]; ok {
			continue
		}
		value, found := fetched[batchKey]
		l.cache[batchKey] = entry[V]{value: value, found: found}
	}
	cached := l.cache[key]
	return cached.value, cached.found, nil
}

// Loaders bundles the per-request loaders for experiment aggregates.
type Loaders struct {
	SequenceNumbers     *Loader[int]
	RunCounts           *Loader[int64]
	AverageRunLatencies *Loader[float64]
	ErrorRates          *Loader[float64]
	AnnotationSummaries *Loader[[]store.AnnotationSummary]
	CostSummaries       *Loader[store.CostSummary]
}

// NewLoaders builds a fresh loader set over the store. Call once per
// request; the caches must not outlive a request or they would serve
// stale aggregates.
func NewLoaders(s *store.Store) *Loaders {
	return &Loaders{
		SequenceNumbers:     NewLoader(s.SequenceNumbers),
		RunCounts:           NewLoader(s.RunCounts),
		AverageRunLatencies: NewLoader(s.AverageRunLatencies),
		ErrorRates:          NewLoader(s.ErrorRates),
		AnnotationSummaries: NewLoader(s.AnnotationSummaries),
		CostSummaries:       NewLoader(s.CostSummaries),
	}
}

// RegisterExperiments marks experiment ids on every aggregate loader so
// whichever aggregates the request reads are fetched for the whole page
// at once.
func (l *Loaders) RegisterExperiments(ids ...int64) {
	l.SequenceNumbers.Register(ids...)
	l.RunCounts.Register(ids...)
	l.AverageRunLatencies.Register(ids...)
	l.ErrorRates.Register(ids...)
	l.AnnotationSummaries.Register(ids...)
	l.CostSummaries.Register(ids...)
}

type loadersKey struct{}

// NewContext injects a request-scoped loader set.
func NewContext(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey{}, loaders)
}

// FromContext retrieves the request's loader set, if present.
func FromContext(ctx context.Context) (*Loaders, bool) {
	if ctx == nil {
		return nil, false
	}
	loaders, ok := ctx.Value(loadersKey{}).(*Loaders)
	return loaders, ok
}

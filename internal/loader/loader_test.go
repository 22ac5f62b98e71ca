package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFetchesOncePerKey(t *testing.T) {
	var calls [][]int64
	l := NewLoader(func(_ context.Context, keys []int64) (map[int64]int64, error) {
		calls = append(calls, keys)
		result := make(map[int64]int64, len(keys))
		for _, key := range keys {
			result[key] = key * 10
		}
		return result, nil
	})

	value, found, err := l.Load(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(30), value)

	// Repeat load hits the cache.
	value, found, err = l.Load(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(30), value)

	require.Len(t, calls, 1)
	assert.Equal(t, []int64{3}, calls[0])
}

func TestRegisteredKeysFlushInOneBatch(t *testing.T) {
	var calls [][]int64
	l := NewLoader(func(_ context.Context, keys []int64) (map[int64]int64, error) {
		calls = append(calls, keys)
		result := make(map[int64]int64, len(keys))
		for _, key := range keys {
			result[key] = key * 100
		}
		return result, nil
	})

	// Duplicate registrations collapse; nothing is fetched yet.
	l.Register(1, 2, 1, 2, 3)
	require.Empty(t, calls)

	value, found, err := l.Load(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(200), value)

	require.Len(t, calls, 1)
	assert.Equal(t, []int64{1, 2, 3}, calls[0])

	// Sibling keys from the batch resolve without another fetch.
	value, found, err = l.Load(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(300), value)
	require.Len(t, calls, 1)
}

func TestLoadReportsMissingKey(t *testing.T) {
	l := NewLoader(func(_ context.Context, keys []int64) (map[int64]int64, error) {
		return map[int64]int64{}, nil
	})

	_, found, err := l.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMissingKeyCachedAsNotFound(t *testing.T) {
	fetches := 0
	l := NewLoader(func(_ context.Context, keys []int64) (map[int64]int64, error) {
		fetches++
		return map[int64]int64{}, nil
	})

	for i := 0; i < 3; i++ {
		_, found, err := l.Load(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, found)
	}
	assert.Equal(t, 1, fetches)
}

func TestLoadPropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	l := NewLoader(func(_ context.Context, keys []int64) (map[int64]int64, error) {
		return nil, boom
	})

	_, _, err := l.Load(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestContextRoundTrip(t *testing.T) {
	loaders := &Loaders{}
	ctx := NewContext(context.Background(), loaders)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, loaders, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

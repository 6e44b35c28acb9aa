package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestGetOrComputeCachesFirstValue(t *testing.T) {
	ctx := context.Background()
	s := NewStore[string, int]("test")

	var calls atomic.Int32
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}

	v, err := s.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	v, err = s.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
		t.Fatal("compute must not run for a present key")
		return 0, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	s := NewStore[string, int]("test")

	_, err := s.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
		return 0, errors.New("directory unreachable")
	})
	require.Error(t, err)
	require.Equal(t, 0, s.Len())

	v, err := s.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

// Without singleflight, concurrent callers may race duplicate computations,
// but every caller must observe the single value that won the write.
func TestConcurrentCallersObserveOneValue(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := NewStore[string, int]("test")

	var next atomic.Int32
	const callers = 32

	results := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
				return int(next.Add(1)), nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	first := results[0]
	for _, v := range results {
		require.Equal(t, first, v)
	}
	got, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, first, got)
}

// With singleflight, the compute function runs exactly once per key no
// matter how many callers arrive at the same time.
func TestSingleflightComputesOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := NewStore[string, int]("test", WithSingleflight())

	var calls atomic.Int32
	gate := make(chan struct{})

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.GetOrCompute(ctx, "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-gate
				return 9, nil
			})
			require.NoError(t, err)
			require.Equal(t, 9, v)
		}()
	}

	close(gate)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestSeedIsFirstWriteWins(t *testing.T) {
	s := NewStore[string, string]("test")

	require.True(t, s.Seed("k", "first"))
	require.False(t, s.Seed("k", "second"))

	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "first", v)
}

func TestLenAndKeys(t *testing.T) {
	s := NewStore[string, int]("test")
	s.Seed("a", 1)
	s.Seed("b", 2)

	require.Equal(t, 2, s.Len())
	require.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}

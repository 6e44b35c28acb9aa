package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolDoesNotCancelSiblingsOnError(t *testing.T) {
	ctx := context.Background()

	var completed atomic.Int32
	p := NewPool(ctx, 2)

	p.Go(func(ctx context.Context) error {
		return errors.New("boom")
	})
	for i := 0; i < 4; i++ {
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			completed.Add(1)
			return nil
		})
	}

	err := p.Wait()
	require.Error(t, err)
	require.Equal(t, int32(4), completed.Load())
}

func TestTrySendThroughChannel(t *testing.T) {
	testcases := map[string]struct {
		ctxCancelled bool
	}{
		`ctx_cancel`:    {ctxCancelled: true},
		`no_ctx_cancel`: {ctxCancelled: false},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var channel chan int
			if tc.ctxCancelled {
				channel = make(chan int)
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			} else {
				channel = make(chan int, 1)
			}

			sent := TrySendThroughChannel(ctx, 7, channel)
			if tc.ctxCancelled {
				require.False(t, sent)
			} else {
				require.True(t, sent)
				require.Equal(t, 7, <-channel)
			}
		})
	}
}

// Package dispatcher runs a unit of work over a batch of items, either
// sequentially or across a bounded worker pool, isolating per-item failures
// from the rest of the batch.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/internal/build"
	"github.com/aclscan/aclscan/internal/concurrency"
	"github.com/aclscan/aclscan/pkg/logger"
)

// ErrBatchTimeout is returned alongside the completed subset of results when
// a batch deadline expires before every item finished.
var ErrBatchTimeout = errors.New("batch timed out")

var (
	dispatchedItemsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "dispatched_items_total",
		Help:      "Number of items handed to a dispatched batch.",
	}, []string{"batch"})

	failedItemsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "dispatched_item_failures_total",
		Help:      "Items excluded from a batch result after a worker error or panic.",
	}, []string{"batch"})

	batchTimeoutCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "batch_timeouts_total",
		Help:      "Batches that returned partial results because the deadline expired.",
	}, []string{"batch"})
)

// Options shape one Map call.
type Options struct {
	// Name labels logs and metrics for this batch.
	Name string

	// Workers is the pool size. One worker processes items strictly in
	// input order; more workers make result order undefined.
	Workers int

	// Timeout bounds the whole batch. Zero means no deadline.
	Timeout time.Duration

	Logger logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "batch"
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoopLogger()
	}
	return o
}

// Map applies unit to every item and collects the successful results. An
// item whose unit errors or panics is logged and excluded; its siblings are
// unaffected, and item failures alone never make Map return an error. When
// the batch deadline expires, the completed results are returned together
// with ErrBatchTimeout and the unfinished workers are abandoned; there is no
// per-item cancellation.
func Map[T, R any](ctx context.Context, items []T, opts Options, unit func(context.Context, T) (R, error)) ([]R, error) {
	opts = opts.withDefaults()

	dispatchedItemsCounter.WithLabelValues(opts.Name).Add(float64(len(items)))
	if len(items) == 0 {
		return nil, nil
	}

	batchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	if opts.Workers == 1 {
		return mapSequential(batchCtx, items, opts, unit)
	}
	return mapParallel(batchCtx, items, opts, unit)
}

func mapSequential[T, R any](ctx context.Context, items []T, opts Options, unit func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			return results, batchInterrupted(ctx, opts, len(results), len(items))
		}
		if r, err := runUnit(ctx, item, opts, unit); err == nil {
			results = append(results, r)
		}
	}
	return results, nil
}

func mapParallel[T, R any](ctx context.Context, items []T, opts Options, unit func(context.Context, T) (R, error)) ([]R, error) {
	resultsChan := make(chan R, len(items))
	done := make(chan struct{})

	// Submission happens off the collecting goroutine: pool.Go blocks when
	// every worker is busy, and a stuck worker must not keep the collector
	// from honoring the batch deadline.
	go func() {
		defer close(done)

		pool := concurrency.NewPool(ctx, opts.Workers)
		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			pool.Go(func(ctx context.Context) error {
				r, err := runUnit(ctx, item, opts, unit)
				if err != nil {
					return nil
				}
				concurrency.TrySendThroughChannel(ctx, r, resultsChan)
				return nil
			})
		}
		_ = pool.Wait()
	}()

	results := make([]R, 0, len(items))
	drain := func() {
		for {
			select {
			case r := <-resultsChan:
				results = append(results, r)
			default:
				return
			}
		}
	}

	select {
	case <-done:
		drain()
		// The submission loop stops early on a dead context, so a closed
		// done channel alone does not mean the batch ran to completion.
		if ctx.Err() != nil {
			return results, batchInterrupted(ctx, opts, len(results), len(items))
		}
		return results, nil
	case <-ctx.Done():
		drain()
		return results, batchInterrupted(ctx, opts, len(results), len(items))
	}
}

func runUnit[T, R any](ctx context.Context, item T, opts Options, unit func(context.Context, T) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
			failedItemsCounter.WithLabelValues(opts.Name).Inc()
			opts.Logger.Error("worker panicked, item excluded from results",
				zap.String("batch", opts.Name),
				zap.Any("item", item),
				zap.Any("panic", r),
			)
		}
	}()

	result, err = unit(ctx, item)
	if err != nil {
		failedItemsCounter.WithLabelValues(opts.Name).Inc()
		opts.Logger.Warn("item failed, excluded from results",
			zap.String("batch", opts.Name),
			zap.Any("item", item),
			zap.Error(err),
		)
	}
	return result, err
}

func batchInterrupted(ctx context.Context, opts Options, completed, total int) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		batchTimeoutCounter.WithLabelValues(opts.Name).Inc()
		opts.Logger.Warn("batch deadline reached, returning completed results",
			zap.String("batch", opts.Name),
			zap.Int("completed", completed),
			zap.Int("total", total),
		)
		return fmt.Errorf("%s: %w", opts.Name, ErrBatchTimeout)
	}
	return fmt.Errorf("%s: %w", opts.Name, ctx.Err())
}

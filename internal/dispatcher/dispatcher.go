// Package dispatcher fans the pending set out over a fixed-size worker pool.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pgoodall/tagtally/internal/worker"
)

// Dispatcher distributes URLs across exactly len(workers) concurrent
// workers. The pool is fixed size: unbounded concurrency would exhaust
// sockets and file descriptors on large inputs.
type Dispatcher struct {
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher. The worker slice must be non-empty; the caller
// validates the configured pool size before construction.
func New(workers []*worker.Worker, logger *zap.Logger) (*Dispatcher, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("worker pool must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{workers: workers, logger: logger}, nil
}

// Run feeds pending through the pool and blocks until every URL has been
// processed and recorded. Each URL is delivered to exactly one worker. The
// first storage fault cancels the remaining work and is returned; per-URL
// fetch failures never surface here.
func (d *Dispatcher) Run(ctx context.Context, pending []string) error {
	feed := make(chan string)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(feed)
		for _, url := range pending {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case feed <- url:
			}
		}
		return nil
	})

	for _, wk := range d.workers {
		wk := wk
		g.Go(func() error {
			return wk.Run(ctx, feed)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	d.logger.Debug("worker pool drained", zap.Int("urls", len(pending)))
	return nil
}

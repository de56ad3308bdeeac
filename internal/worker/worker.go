// Package worker hosts the background forecast jobs: an AMQP consumer that
// reacts to expense changes and a cron scheduler for the monthly batch.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/amqp"
)

// Consumer delivers AMQP messages to a handler until ctx is done.
type Consumer interface {
	ConsumeWithRetry(ctx context.Context, h amqp.Handler) error
}

var _ Consumer = (*amqp.Client)(nil)

// Run drives the consumer and the scheduler until ctx is cancelled or one
// of them fails. Either may be nil.
func Run(ctx context.Context, consumer Consumer, handler amqp.Handler, scheduler *Scheduler) error {
	g, gctx := errgroup.WithContext(ctx)
	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeWithRetry(gctx, handler)
		})
	}
	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

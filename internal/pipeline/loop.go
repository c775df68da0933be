package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Options carries the loop timing shared by every stage.
type Options struct {
	PopTimeout time.Duration
	ErrorSleep time.Duration
}

func (o Options) withDefaults() Options {
	if o.PopTimeout <= 0 {
		o.PopTimeout = 2 * time.Second
	}
	if o.ErrorSleep <= 0 {
		o.ErrorSleep = time.Second
	}
	return o
}

// runLoop is the shared stage skeleton: blocking-pop with a bounded wait,
// process, repeat. Any error inside one iteration is logged and the loop
// sleeps briefly before continuing; the popped item is never retried. The
// loop exits when ctx is done, checked at every suspension point, so an
// in-flight iteration completes before shutdown finishes.
func runLoop(ctx context.Context, stage string, q Queue, queueName string, opts Options, handle func(ctx context.Context, payload []byte) error) error {
	opts = opts.withDefaults()
	slog.Info("stage listening", "stage", stage, "queue", queueName)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("stage stopped", "stage", stage)
			return nil
		}

		payload, err := q.Pop(ctx, queueName, opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("stage stopped", "stage", stage)
				return nil
			}
			slog.Error("queue pop failed", "stage", stage, "queue", queueName, "error", err)
			sleep(ctx, opts.ErrorSleep)
			continue
		}
		if payload == nil {
			continue
		}

		if err := handle(ctx, payload); err != nil {
			slog.Error("stage iteration failed, item dropped", "stage", stage, "error", err)
			sleep(ctx, opts.ErrorSleep)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior for calls to external services.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry matches the upstream rate-limit guidance: three attempts with
// backoff growing from 4s toward a 10s cap.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 4 * time.Second,
	MaxWait:     10 * time.Second,
	Jitter:      true,
}

// Retry runs f up to MaxAttempts times with exponential backoff between
// attempts. Context cancellation is fatal: it is returned immediately and
// never retried.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetry.MaxAttempts
	}
	wait := opts.InitialWait
	if wait <= 0 {
		wait = DefaultRetry.InitialWait
	}

	var r Result[T]
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Err[T](err)
		}
		r = f(ctx)
		if r.IsOk() || attempt == opts.MaxAttempts {
			return r
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}

		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(sleep):
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}

// RetryOp is Retry for operations that only return an error.
func RetryOp(ctx context.Context, opts RetryOpts, f func(context.Context) error) error {
	r := Retry(ctx, opts, func(ctx context.Context) Result[struct{}] {
		if err := f(ctx); err != nil {
			return Err[struct{}](err)
		}
		return Ok(struct{}{})
	})
	_, err := r.Unwrap()
	return err
}

package retry

import (
	"context"
	"log/slog"
)

const DefaultLimit = 10

type Option func(*policy)

type policy struct {
	limit     int
	retryable func(error) bool
	between   func(ctx context.Context, attempt int, err error) error
	logger    *slog.Logger
	operation string
}

// WithLimit sets the maximum number of attempts.
func WithLimit(n int) Option {
	return func(p *policy) {
		p.limit = n
	}
}

// On restricts retries to errors for which retryable returns true.
func On(retryable func(error) bool) Option {
	return func(p *policy) {
		p.retryable = retryable
	}
}

// Between runs fn after a failed attempt and before the next one, for
// example to reconnect. An error from fn ends the retries.
func Between(fn func(ctx context.Context, attempt int, err error) error) Option {
	return func(p *policy) {
		p.between = fn
	}
}

func WithLogger(logger *slog.Logger, operation string) Option {
	return func(p *policy) {
		p.logger = logger
		p.operation = operation
	}
}

// Do calls fn until it succeeds, returns an error that is not retryable,
// or the attempt limit is reached. The last error is returned.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	p := policy{
		limit:     DefaultLimit,
		retryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.limit < 1 {
		p.limit = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		err = fn()
		if err == nil {
			if attempt > 1 && p.logger != nil {
				p.logger.Info("operation succeeded after retry", "operation", p.operation, "attempts", attempt)
			}
			return nil
		}
		if !p.retryable(err) || attempt >= p.limit {
			if attempt > 1 && p.logger != nil {
				p.logger.Error("operation failed after retries", "operation", p.operation, "attempts", attempt, "error", err)
			}
			return err
		}
		if p.logger != nil {
			p.logger.Warn("operation failed, retrying", "operation", p.operation, "attempt", attempt, "limit", p.limit, "error", err)
		}
		if p.between != nil {
			if berr := p.between(ctx, attempt, err); berr != nil {
				return berr
			}
		}
	}
}

// Value is Do for functions that return a result.
func Value[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	var out T
	err := Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	return out, err
}

// Package watchrunner repeats a pass on a fixed interval until cancelled.
package watchrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Pass is one round of work, such as backing up every account.
type Pass func(ctx context.Context) error

type Deps struct {
	Interval time.Duration
	Log      *slog.Logger
	// After, when set, is called with the result of every pass.
	After func(round int, err error)
}

// Run calls pass immediately and then every Interval. A failed pass is
// logged and the next one still runs. Run returns nil once ctx is
// cancelled.
func Run(ctx context.Context, deps Deps, pass Pass) error {
	if deps.Interval <= 0 {
		return errors.New("watch interval must be positive")
	}
	logger := deps.Log
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(deps.Interval)
	defer ticker.Stop()
	for round := 1; ; round++ {
		started := time.Now()
		err := pass(ctx)
		if IsShutdown(ctx, err) {
			logger.Info("watch stopped", "rounds", round)
			return nil
		}
		if err != nil {
			logger.Error("pass failed", "round", round, "error", err)
		} else {
			logger.Info("pass finished", "round", round, "elapsed", time.Since(started).String())
		}
		if deps.After != nil {
			deps.After(round, err)
		}

		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "rounds", round)
			return nil
		case <-ticker.C:
		}
	}
}

// IsShutdown reports whether err only reflects ctx being cancelled.
func IsShutdown(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

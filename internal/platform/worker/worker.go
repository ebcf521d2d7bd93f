// Package worker provides ticker-driven background loops with context
// cancellation and panic recovery.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker = "worker"
	logFieldTask   = "task"

	errFmtTickerLoop = "ticker loop %s: %w"
)

// TickerConfig configures a loop with one main ticker and an optional
// secondary ticker for housekeeping.
type TickerConfig struct {
	// Name identifies the worker for logging.
	Name string

	// Interval is the main ticker interval.
	Interval time.Duration

	// OnTick is called when the main ticker fires.
	OnTick func(ctx context.Context)

	// RunOnStart runs OnTick immediately when starting.
	RunOnStart bool

	// SecondaryInterval is the interval for OnSecondaryTick (0 to disable).
	SecondaryInterval time.Duration

	// OnSecondaryTick is called when the secondary ticker fires.
	OnSecondaryTick func(ctx context.Context)

	// OnStop is called once when the loop exits.
	OnStop func()

	// Logger for the worker.
	Logger *zerolog.Logger
}

// TickerLoop runs cfg.OnTick every cfg.Interval until ctx is canceled.
// A panic in a callback is logged and the loop keeps running.
// Returns a wrapped context error when the context is canceled.
func TickerLoop(ctx context.Context, cfg TickerConfig) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("ticker loop %s: non-positive interval %s", cfg.Name, cfg.Interval)
	}

	logger := getLogger(cfg.Logger)
	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting ticker loop")

	defer func() {
		if cfg.OnStop != nil {
			cfg.OnStop()
		}

		logger.Info().Str(logFieldWorker, cfg.Name).Msg("ticker loop stopped")
	}()

	if cfg.RunOnStart {
		runTask(ctx, logger, "tick", cfg.OnTick)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// A nil channel never fires, so the select below works with or without a
	// secondary ticker.
	var secondary <-chan time.Time

	if cfg.SecondaryInterval > 0 && cfg.OnSecondaryTick != nil {
		secondaryTicker := time.NewTicker(cfg.SecondaryInterval)
		defer secondaryTicker.Stop()

		secondary = secondaryTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf(errFmtTickerLoop, cfg.Name, ctx.Err())
		case <-ticker.C:
			runTask(ctx, logger, "tick", cfg.OnTick)
		case <-secondary:
			runTask(ctx, logger, "secondary", cfg.OnSecondaryTick)
		}
	}
}

func runTask(ctx context.Context, logger *zerolog.Logger, name string, fn func(ctx context.Context)) {
	if fn == nil || ctx.Err() != nil {
		return
	}

	defer RecoverPanic(logger, name)

	logger.Debug().Str(logFieldTask, name).Msg("ticker fired")
	fn(ctx)
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}

// getLogger returns the provided logger or a nop logger if nil.
func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}

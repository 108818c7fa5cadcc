// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package gofusion

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the optimizer's field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// LogIteration logs the outcome of one outer LM iteration.
func (l *Logger) LogIteration(iteration int, state LMState, lambda, errBefore, errAfter float64) {
	l.Info("lm iteration",
		"iteration", iteration,
		"state", state.String(),
		"lambda", lambda,
		"error_before", errBefore,
		"error_after", errAfter,
	)
}

// LogTry logs one damped inner solve.
func (l *Logger) LogTry(iteration int, lambda float64, cglsSteps int, linearBefore, linearAfter, errAfter float64) {
	l.Debug("lm try lambda",
		"iteration", iteration,
		"lambda", lambda,
		"cgls_steps", cglsSteps,
		"linear_error_before", linearBefore,
		"linear_error_after", linearAfter,
		"error", errAfter,
	)
}

// LogGaveUp logs the damping exceeding its ceiling.
func (l *Logger) LogGaveUp(iteration int, lambda float64, accepted bool) {
	if accepted {
		l.Info("lm stalled, keeping last accepted estimate",
			"iteration", iteration,
			"lambda", lambda,
		)
	} else {
		l.Warn("lm gave up without an accepted step",
			"iteration", iteration,
			"lambda", lambda,
		)
	}
}

// LogUnconstrained warns about variables that no factor touches.
func (l *Logger) LogUnconstrained(ids []VariableID) {
	if len(ids) == 0 {
		return
	}
	l.Warn("variables not adjacent to any factor",
		"count", len(ids),
		"first", ids[0].String(),
	)
}

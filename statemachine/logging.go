package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fluxstate/fluxfsm/logger"
)

// Logger provides logging hooks for instrumented dispatch. The engine itself
// never logs; an Instrumented machine reports through this interface.
type Logger interface {
	TransitionExecuted(ctx context.Context, machine, from, event, to string, duration time.Duration)
	GuardRejected(ctx context.Context, machine, state, event string)
	EventUnmatched(ctx context.Context, machine, state, event string)
	DispatchFailed(ctx context.Context, machine, state, event string, err error)
}

// DefaultLogger implements Logger using the logger package.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger that resolves its slog.Logger per call
// from the context, so subsystem and values set with logger.With are kept.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// NewSlogLogger creates a Logger writing to l.
func NewSlogLogger(l *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) get(ctx context.Context) *slog.Logger {
	if l.logger != nil {
		return l.logger
	}

	return logger.Get(ctx)
}

func (l *DefaultLogger) TransitionExecuted(
	ctx context.Context, machine, from, event, to string, duration time.Duration,
) {
	l.get(ctx).DebugContext(ctx, "Transition executed",
		"machine", machine,
		"from", from,
		"event", event,
		"to", to,
		"duration_us", duration.Microseconds(),
	)
}

func (l *DefaultLogger) GuardRejected(ctx context.Context, machine, state, event string) {
	l.get(ctx).Log(ctx, logger.LevelNotice, "Guard rejected transition",
		"machine", machine,
		"state", state,
		"event", event,
	)
}

func (l *DefaultLogger) EventUnmatched(ctx context.Context, machine, state, event string) {
	l.get(ctx).WarnContext(ctx, "No transition for event",
		"machine", machine,
		"state", state,
		"event", event,
	)
}

func (l *DefaultLogger) DispatchFailed(ctx context.Context, machine, state, event string, err error) {
	l.get(ctx).ErrorContext(ctx, "Dispatch failed",
		"machine", machine,
		"state", state,
		"event", event,
		"error", err,
	)
}

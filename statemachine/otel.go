package statemachine

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxstate/fluxfsm/statemachine"

// startDispatchSpan creates a span for one dispatch.
// Uses the global tracer initialized by the telemetry package.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startDispatchSpan(ctx context.Context, snap dispatchLabels) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "statemachine.dispatch")
	span.SetAttributes(
		attribute.String("machine", snap.machine),
		attribute.String("machine_id", snap.machineID),
		attribute.String("state", snap.state),
		attribute.String("event", snap.event),
	)
	logSpanDebug(ctx, "started", "statemachine.dispatch", span)

	return ctx, span
}

// dispatchLabels are the identifying attributes shared by spans and logs.
type dispatchLabels struct {
	machine   string
	machineID string
	state     string
	event     string
}

// logSpanDebug logs span creation when FLUXFSM_DEBUG is set.
func logSpanDebug(ctx context.Context, phase string, spanName string, span trace.Span) {
	if !isDebugMode() {
		return
	}

	spanCtx := span.SpanContext()
	slog.DebugContext(ctx, "OTEL Span "+phase,
		"span_name", spanName,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

// isDebugMode checks if FLUXFSM_DEBUG is enabled.
func isDebugMode() bool {
	v := os.Getenv("FLUXFSM_DEBUG")
	if strings.EqualFold(v, "true") {
		return true
	}

	n, err := strconv.Atoi(v)

	return err == nil && n > 0
}

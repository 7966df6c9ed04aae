package validator

import (
	"context"

	"github.com/fluxstate/fluxfsm/statemachine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/fluxstate/fluxfsm/statemachine/validator"

// ValidateContext is Validate (or ValidateStrict) wrapped in a
// statemachine.validate span carrying the finding counts.
func ValidateContext(ctx context.Context, snap statemachine.Snapshot, strict bool) Result {
	_, span := otel.Tracer(tracerName).Start(ctx, "statemachine.validate")
	defer span.End()

	var result Result
	if strict {
		result = ValidateStrict(snap)
	} else {
		result = Validate(snap)
	}

	span.SetAttributes(
		attribute.String("machine", snap.Name),
		attribute.Int("state_count", snap.StateCount),
		attribute.Int("transition_count", len(snap.Transitions)),
		attribute.Int("errors", len(result.Errors)),
		attribute.Int("warnings", len(result.Warnings)),
		attribute.Bool("strict", strict),
	)

	if result.Valid {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, result.Errors[0].Code)
	}

	return result
}

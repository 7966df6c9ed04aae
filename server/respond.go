package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/statemachine/fleet"
	"github.com/fluxstate/fluxfsm/statemachine/visualizer"
	"github.com/go-chi/chi/v5/middleware"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get(r.Context()).Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get(r.Context()).Error("Request failed", "error", err)
	}

	writeJSON(w, r, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fleet.ErrUnknownMachine), errors.Is(err, statemachine.ErrUnknownEvent):
		return http.StatusNotFound
	case errors.Is(err, statemachine.ErrGuardRejected), errors.Is(err, statemachine.ErrNoTransition):
		return http.StatusConflict
	case errors.Is(err, visualizer.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, fleet.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs one line per request and tags the request context with
// its id, so dispatch logs further down carry it too.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.With(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Get(ctx).Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

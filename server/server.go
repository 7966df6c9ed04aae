// Package server exposes a fleet of machines over HTTP: machine listing,
// snapshots, graph export, event submission and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/statemachine/fleet"
	"github.com/fluxstate/fluxfsm/statemachine/visualizer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

// ErrStart is returned when the listener cannot be started.
var ErrStart = errors.New("failed to start server")

// Option configures a Server.
type Option func(*options)

type options struct {
	viz         visualizer.Options
	metricsPath string
	metrics     http.Handler
}

// WithVizOptions sets the defaults for the graph endpoint. The format can be
// overridden per request with ?format=.
func WithVizOptions(opts visualizer.Options) Option {
	return func(o *options) {
		o.viz = opts
	}
}

// WithMetrics serves h at path. The default is promhttp.Handler() at /metrics.
func WithMetrics(path string, h http.Handler) Option {
	return func(o *options) {
		o.metricsPath = path
		o.metrics = h
	}
}

// Server routes HTTP requests to the machines of a fleet.
type Server[C any] struct {
	fleet *fleet.Fleet[C]
	opts  options
}

// New creates a Server for f. The server does not own f.
func New[C any](f *fleet.Fleet[C], opts ...Option) *Server[C] {
	o := options{
		viz:         visualizer.DefaultOptions(),
		metricsPath: "/metrics",
		metrics:     promhttp.Handler(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Server[C]{fleet: f, opts: o}
}

// MachineView is the JSON form of a machine's position.
type MachineView struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	State       int    `json:"state"`
	StateName   string `json:"state_name"`
	Transitions int    `json:"transitions"`
	Fingerprint string `json:"fingerprint"`
}

// Routes returns the HTTP handler.
//
//	GET  /healthz
//	GET  /machines
//	GET  /machines/{id}
//	GET  /machines/{id}/graph?format=dot|mermaid|json|yaml
//	POST /machines/{id}/events/{event}
//	POST /events/{event}
func (s *Server[C]) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	if s.opts.metrics != nil {
		r.Method(http.MethodGet, s.opts.metricsPath, s.opts.metrics)
	}

	r.Route("/machines", func(r chi.Router) {
		r.Get("/", s.listMachines)
		r.Get("/{id}", s.getMachine)
		r.Get("/{id}/graph", s.getGraph)
		r.Post("/{id}/events/{event}", s.postEvent)
	})

	r.Post("/events/{event}", s.broadcast)

	return r
}

func (s *Server[C]) listMachines(w http.ResponseWriter, r *http.Request) {
	ids := s.fleet.IDs()
	views := make([]MachineView, 0, len(ids))

	for _, id := range ids {
		snap, err := s.fleet.Snapshot(id)
		if errors.Is(err, fleet.ErrUnknownMachine) {
			continue // removed since IDs was read
		}

		if err != nil {
			writeError(w, r, err)

			return
		}

		views = append(views, view(id, snap))
	}

	writeJSON(w, r, http.StatusOK, views)
}

func (s *Server[C]) getMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.fleet.Snapshot(id)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, view(id, snap))
}

func (s *Server[C]) getGraph(w http.ResponseWriter, r *http.Request) {
	opts := s.opts.viz

	if name := r.URL.Query().Get("format"); name != "" {
		format, err := visualizer.ParseFormat(name)
		if err != nil {
			writeError(w, r, err)

			return
		}

		opts.Format = format
	}

	snap, err := s.fleet.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)

		return
	}

	out, err := visualizer.Generate(snap, opts)
	if err != nil {
		writeError(w, r, err)

		return
	}

	w.Header().Set("Content-Type", contentType(opts.Format))
	_, _ = w.Write([]byte(out))
}

func (s *Server[C]) postEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.fleet.Snapshot(id)
	if err != nil {
		writeError(w, r, err)

		return
	}

	event, err := lookupEvent(snap, chi.URLParam(r, "event"))
	if err != nil {
		writeError(w, r, err)

		return
	}

	err = s.fleet.Dispatch(r.Context(), id, event).Wait()
	if err != nil {
		writeError(w, r, err)

		return
	}

	snap, err = s.fleet.Snapshot(id)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, view(id, snap))
}

func (s *Server[C]) broadcast(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "event")
	found := false

	err := s.fleet.BroadcastFunc(r.Context(), func(_ string, snap statemachine.Snapshot) (statemachine.Event, bool) {
		event, err := lookupEvent(snap, name)
		if err != nil {
			return 0, false
		}

		found = true

		return event, true
	})

	switch {
	case !found:
		writeError(w, r, fmt.Errorf("%w: %q", statemachine.ErrUnknownEvent, name))
	case err != nil:
		writeError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// lookupEvent resolves an event by its name, falling back to a numeric id.
func lookupEvent(snap statemachine.Snapshot, name string) (statemachine.Event, error) {
	for id, n := range snap.EventNames {
		if n == name {
			return id, nil
		}
	}

	if n, err := strconv.Atoi(name); err == nil && n >= 0 {
		return statemachine.Event(n), nil
	}

	return -1, fmt.Errorf("%w: %q", statemachine.ErrUnknownEvent, name)
}

func view(id string, snap statemachine.Snapshot) MachineView {
	return MachineView{
		ID:          id,
		Name:        snap.Name,
		State:       int(snap.Current),
		StateName:   snap.StateLabel(snap.Current),
		Transitions: len(snap.Transitions),
		Fingerprint: strconv.FormatUint(snap.Fingerprint(), 16),
	}
}

func contentType(format visualizer.Format) string {
	switch format {
	case visualizer.FormatJSON:
		return "application/json"
	case visualizer.FormatYAML:
		return "application/yaml"
	case visualizer.FormatDOT:
		return "text/vnd.graphviz; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Run serves handler on addr until ctx is canceled, then shuts down
// gracefully within timeout.
func Run(ctx context.Context, addr string, handler http.Handler, timeout time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Join(ErrStart, err)
	}

	return Serve(ctx, lis, handler, timeout)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, lis net.Listener, handler http.Handler, timeout time.Duration) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	log := logger.Get(ctx)
	log.Info("HTTP server listening", "addr", lis.Addr().String())

	errCh := make(chan error, 1)

	go func() { errCh <- srv.Serve(lis) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return errors.Join(ErrStart, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	log.Info("HTTP server shutting down")

	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}

	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Default subsystem name, attached to every record obtained through Get.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex protects concurrent calls to ConfigureLoggingWithOptions.
// The function modifies global state (slog.SetDefault and log.Default).
var configMutex sync.Mutex //nolint:gochecknoglobals

// Unexported key type so other packages cannot collide with our context values.
type contextKey string

// Fatal logs an error message and exits the process.
func Fatal(msg string, args ...any) {
	Get().Log(context.Background(), LevelEmergency, msg, args...)

	os.Exit(1)
}

// Options is used to configure logging.
type Options struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	// LegacyLevel is the level used for output of the standard log package.
	LegacyLevel slog.Level
	Output      io.Writer
	// Colors prints the level name in ANSI colour. Ignored for JSON output
	// and when Output is not a terminal-like stream (stdout or stderr).
	Colors bool
	// Handlers receive every record in addition to the console handler,
	// e.g. the OTLP log bridge.
	Handlers []slog.Handler
}

// ConfigureLoggingWithOptions configures logging for the application and
// returns the default logger. Concurrent calls are serialized.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var console slog.Handler

	switch {
	case opts.JSON:
		console = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level:       opts.MinLevel,
			ReplaceAttr: replaceLevel,
		})
	case opts.Colors && isConsole(opts.Output):
		console = newColorHandler(opts.Output, opts.MinLevel)
	default:
		console = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{
			Level:       opts.MinLevel,
			ReplaceAttr: replaceLevel,
		})
	}

	handlers := append([]slog.Handler{console}, opts.Handlers...)
	handler := &slogErrorLogger{inner: newFanoutHandler(handlers...)}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Third party packages may still use the log package.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

func isConsole(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && (f == os.Stdout || f == os.Stderr)
}

// WithMuted adds a muted flag to the context. Loggers obtained from a muted
// context discard everything, which is handy for hot loops like fleet broadcasts.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// WithSubsystem overrides the subsystem name for loggers obtained from ctx.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from the context, falling back to the
// one configured with ConfigureLoggingWithOptions.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	if val, ok := ctx.Value(contextKey("subsystem")).(string); ok {
		return val
	}

	if val, ok := subsystem.Load().(string); ok {
		return val
	}

	return ""
}

// hostname is the pod name in k8s and the machine name elsewhere.
var hostname = sync.OnceValue(func() string { //nolint:gochecknoglobals
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return h
})

// GetHostname returns the cached host name.
func GetHostname() string {
	return hostname()
}

// getRealContext returns the first non-nil context, or context.Background().
func getRealContext(ctx ...context.Context) context.Context {
	for _, c := range ctx {
		if c != nil {
			return c
		}
	}

	return context.Background()
}

// nullHandler discards all output. It backs muted loggers.
type nullHandler struct{}

func (n *nullHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return false
}

func (n *nullHandler) Handle(_ context.Context, _ slog.Record) error {
	return nil
}

func (n *nullHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return n
}

func (n *nullHandler) WithGroup(_ string) slog.Handler {
	return n
}

var nullLogger = slog.New(&nullHandler{}) //nolint:gochecknoglobals

// Get returns a logger carrying the subsystem, the host name and any values
// added with With. A muted context yields a logger that writes nothing.
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := getRealContext(ctx...)

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default().With(
		"subsystem", GetSubsystem(realCtx),
		"host", hostname())

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}

// With returns a new context with the given key-value pairs added. Loggers
// obtained from it include them automatically.
func With(ctx context.Context, values ...any) context.Context {
	if len(values) == 0 && ctx != nil {
		return ctx
	}

	if ctx == nil {
		ctx = context.Background()
	}

	existing := getValues(ctx)
	vals := make([]any, 0, len(existing)+len(values))
	vals = append(vals, existing...)
	vals = append(vals, values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any { //nolint:contextcheck
	if ctx == nil {
		return nil
	}

	vals, ok := ctx.Value(contextKey("loggerValues")).([]any)
	if !ok {
		return nil
	}

	return vals
}

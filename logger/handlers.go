package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// colorHandler prefixes every record with its level name in ANSI colour.
// The rest of the line is rendered by a text handler into a shared buffer.
type colorHandler struct {
	inner slog.Handler
	buf   *bytes.Buffer
	mu    *sync.Mutex
	out   io.Writer
}

var _ slog.Handler = (*colorHandler)(nil)

func newColorHandler(out io.Writer, level slog.Leveler) *colorHandler {
	buf := &bytes.Buffer{}

	return &colorHandler{
		inner: slog.NewTextHandler(buf, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if len(groups) == 0 && attr.Key == slog.LevelKey {
					return slog.Attr{}
				}

				return attr
			},
		}),
		buf: buf,
		mu:  &sync.Mutex{},
		out: out,
	}
}

func (h *colorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *colorHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()

	err := h.inner.Handle(ctx, record)
	if err != nil {
		return err
	}

	_, err = io.WriteString(h.out, "["+levelColor(record.Level)+LevelName(record.Level)+colorReset+"] ")
	if err != nil {
		return err
	}

	_, err = h.out.Write(h.buf.Bytes())

	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{inner: h.inner.WithAttrs(attrs), buf: h.buf, mu: h.mu, out: h.out}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{inner: h.inner.WithGroup(name), buf: h.buf, mu: h.mu, out: h.out}
}

// fanoutHandler sends every record to all of its handlers, e.g. the console
// handler and the OTLP log bridge.
type fanoutHandler struct {
	handlers []slog.Handler
}

var _ slog.Handler = (*fanoutHandler)(nil)

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}

	return &fanoutHandler{handlers: handlers}
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error

	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}

		err := h.Handle(ctx, record.Clone())
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}

	return &fanoutHandler{handlers: handlers}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithGroup(name)
	}

	return &fanoutHandler{handlers: handlers}
}

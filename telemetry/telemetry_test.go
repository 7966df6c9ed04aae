package telemetry

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluxstate/fluxfsm/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.paths = append(c.paths, r.URL.Path)
	c.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
}

func (c *collector) seen(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}

	return false
}

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"disabled", config.TelemetryConfig{TracesEndpoint: "http://localhost:4318"}},
		{"no endpoints", config.TelemetryConfig{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Initialize(t.Context(), tt.cfg)
			require.NoError(t, err)

			assert.False(t, p.TracingEnabled())
			assert.Nil(t, p.LogHandler())
			require.NoError(t, p.Shutdown(t.Context()))
		})
	}
}

func TestNilProvider(t *testing.T) {
	t.Parallel()

	var p *Provider

	assert.False(t, p.TracingEnabled())
	assert.Nil(t, p.LogHandler())
	require.NoError(t, p.Shutdown(t.Context()))
}

// Cannot run in parallel: Initialize installs the global tracer provider.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestInitializeExportsToCollector(t *testing.T) {
	sink := &collector{}
	server := httptest.NewServer(sink)
	t.Cleanup(server.Close)

	old := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(old) })

	p, err := Initialize(t.Context(), config.TelemetryConfig{
		Enabled:        true,
		ServiceName:    "fluxfsm-test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		TracesEndpoint: server.URL + "/v1/traces",
		LogsEndpoint:   server.URL + "/v1/logs",
		Timeout:        time.Second,
		DNSCache:       true,
	})
	require.NoError(t, err)
	require.True(t, p.TracingEnabled())

	_, span := otel.Tracer("test").Start(context.Background(), "dispatch")
	span.End()

	handler := p.LogHandler()
	require.NotNil(t, handler)

	ctx := context.Background()
	slog.New(handler).InfoContext(ctx, "exported record", "machine", "m1")

	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx), "second shutdown is a no-op")

	assert.True(t, sink.seen("/v1/traces"))
	assert.True(t, sink.seen("/v1/logs"))
}

func TestCachedDialer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := exporterClient(time.Second, true)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = cachedDialer(resolver(), &net.Dialer{})(t.Context(), "tcp", "missing-port")
	require.Error(t, err)
}

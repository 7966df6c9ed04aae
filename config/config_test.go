package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/statemachine/visualizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, LogConfig{Level: "info", Color: true, Subsystem: "fluxfsm"}, cfg.Log)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "fluxfsm", cfg.Telemetry.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.Telemetry.Timeout)
	assert.Empty(t, cfg.Telemetry.TracesEndpoint)
	assert.Equal(t, MetricsConfig{Path: "/metrics"}, cfg.Metrics)
	assert.Equal(t, "dot", cfg.Viz.Format)
	assert.Equal(t, 12, cfg.Viz.FontSize)
	assert.False(t, cfg.Telemetry.DNSCache)
	assert.Equal(t, ServerConfig{Addr: ":8080", Workers: 10, ShutdownTimeout: 10 * time.Second}, cfg.Server)
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(map[string]string{
		"FLUXFSM_LOG_LEVEL":          "notice",
		"FLUXFSM_LOG_JSON":           "true",
		"OTEL_ENABLED":               "true",
		"OTEL_EXPORTER_OTLP_TIMEOUT": "250ms",
		"FLUXFSM_METRICS_ADDR":       ":9090",
		"FLUXFSM_VIZ_FORMAT":         "mermaid",
		"FLUXFSM_VIZ_SHOW_GUARDS":    "1",
		"FLUXFSM_VIZ_DIRECTION":      "LR",
		"FLUXFSM_OTLP_DNS_CACHE":     "true",
		"FLUXFSM_SERVER_ADDR":        "127.0.0.1:9000",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Log.JSON)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Telemetry.Timeout)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.True(t, cfg.Telemetry.DNSCache)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	logOpts, err := cfg.Log.Options()
	require.NoError(t, err)
	assert.Equal(t, logger.LevelNotice, logOpts.MinLevel)
	assert.True(t, logOpts.JSON)
	assert.Equal(t, "fluxfsm", logOpts.Subsystem)

	vizOpts, err := cfg.Viz.Options()
	require.NoError(t, err)
	assert.Equal(t, visualizer.FormatMermaid, vizOpts.Format)
	assert.True(t, vizOpts.ShowGuards)
	assert.Equal(t, "LR", vizOpts.Direction)
	assert.True(t, vizOpts.ShowEvents)
}

func TestParseKubernetesEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		environ    map[string]string
		wantTraces string
		wantLogs   string
	}{
		{
			name:       "outside kubernetes",
			environ:    map[string]string{},
			wantTraces: "",
			wantLogs:   "",
		},
		{
			name:       "kubernetes default collector",
			environ:    map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"},
			wantTraces: kubernetesCollectorEndpoint,
			wantLogs:   kubernetesCollectorEndpoint,
		},
		{
			name: "explicit endpoint wins",
			environ: map[string]string{
				"KUBERNETES_SERVICE_HOST":            "10.0.0.1",
				"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://collector:4318",
			},
			wantTraces: "http://collector:4318",
			wantLogs:   kubernetesCollectorEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Parse(tt.environ)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTraces, cfg.Telemetry.TracesEndpoint)
			assert.Equal(t, tt.wantLogs, cfg.Telemetry.LogsEndpoint)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := Parse(map[string]string{"OTEL_ENABLED": "maybe"})
	require.ErrorIs(t, err, ErrParsingConfig)

	_, err = Parse(map[string]string{"FLUXFSM_VIZ_FONT_SIZE": "big"})
	require.ErrorIs(t, err, ErrParsingConfig)

	cfg, err := Parse(map[string]string{"FLUXFSM_LOG_LEVEL": "loud", "FLUXFSM_VIZ_FORMAT": "svg"})
	require.NoError(t, err)

	_, err = cfg.Log.Options()
	require.ErrorIs(t, err, logger.ErrInvalidLevel)

	_, err = cfg.Viz.Options()
	require.ErrorIs(t, err, visualizer.ErrUnsupportedFormat)
}

// Cannot run in parallel: godotenv writes the process environment.
//
//nolint:paralleltest // Test modifies process environment
func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FLUXFSM_VIZ_FORMAT=json\nFLUXFSM_LOG_SUBSYSTEM=from-file\n"), 0o600))

	t.Setenv("FLUXFSM_VIZ_FORMAT", "yaml")
	t.Setenv("FLUXFSM_LOG_SUBSYSTEM", "")
	require.NoError(t, os.Unsetenv("FLUXFSM_LOG_SUBSYSTEM"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.Viz.Format, "process environment wins")
	assert.Equal(t, "from-file", cfg.Log.Subsystem)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

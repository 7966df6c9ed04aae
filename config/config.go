// Package config loads process configuration for the fluxfsm tools from the
// environment, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/statemachine/visualizer"
	"github.com/joho/godotenv"
)

// Default collector endpoint inside a Kubernetes cluster.
const kubernetesCollectorEndpoint = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"

// ErrParsingConfig is returned when the environment cannot be parsed.
var ErrParsingConfig = errors.New("failed to parse configuration")

// Config is the full process configuration.
type Config struct {
	Log       LogConfig
	Telemetry TelemetryConfig
	Metrics   MetricsConfig
	Viz       VizConfig
	Server    ServerConfig
}

// LogConfig configures the logger package.
type LogConfig struct {
	Level     string `env:"FLUXFSM_LOG_LEVEL"     envDefault:"info"`
	JSON      bool   `env:"FLUXFSM_LOG_JSON"      envDefault:"false"`
	Color     bool   `env:"FLUXFSM_LOG_COLOR"     envDefault:"true"`
	Subsystem string `env:"FLUXFSM_LOG_SUBSYSTEM" envDefault:"fluxfsm"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `env:"OTEL_ENABLED"                       envDefault:"false"`
	ServiceName    string        `env:"OTEL_SERVICE_NAME"                  envDefault:"fluxfsm"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"` // defaults to the binary's build version
	Environment    string        `env:"FLUXFSM_ENV"                        envDefault:"local"`
	TracesEndpoint string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogsEndpoint   string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT"         envDefault:"5s"`
	KubernetesHost string        `env:"KUBERNETES_SERVICE_HOST"`
	// DNSCache resolves the collector host through a caching resolver.
	DNSCache bool `env:"FLUXFSM_OTLP_DNS_CACHE" envDefault:"false"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `env:"FLUXFSM_METRICS_ADDR"`
	Path string `env:"FLUXFSM_METRICS_PATH" envDefault:"/metrics"`
}

// ServerConfig configures "fluxfsm serve".
type ServerConfig struct {
	Addr            string        `env:"FLUXFSM_SERVER_ADDR"             envDefault:":8080"`
	Workers         int           `env:"FLUXFSM_SERVER_WORKERS"          envDefault:"10"`
	ShutdownTimeout time.Duration `env:"FLUXFSM_SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// VizConfig holds the defaults for graph export.
type VizConfig struct {
	Format           string `env:"FLUXFSM_VIZ_FORMAT"            envDefault:"dot"`
	FontName         string `env:"FLUXFSM_VIZ_FONT_NAME"`
	FontSize         int    `env:"FLUXFSM_VIZ_FONT_SIZE"         envDefault:"12"`
	NodeShape        string `env:"FLUXFSM_VIZ_NODE_SHAPE"        envDefault:"ellipse"`
	EdgeStyle        string `env:"FLUXFSM_VIZ_EDGE_STYLE"        envDefault:"solid"`
	BgColor          string `env:"FLUXFSM_VIZ_BG_COLOR"`
	Direction        string `env:"FLUXFSM_VIZ_DIRECTION"`
	ShowGuards       bool   `env:"FLUXFSM_VIZ_SHOW_GUARDS"       envDefault:"false"`
	ShowActions      bool   `env:"FLUXFSM_VIZ_SHOW_ACTIONS"      envDefault:"false"`
	HighlightCurrent bool   `env:"FLUXFSM_VIZ_HIGHLIGHT_CURRENT" envDefault:"false"`
}

// Load reads the given .env files into the process environment, then parses
// it. With no files, a .env file in the working directory is loaded if present.
// Variables already set in the environment win over file values.
func Load(files ...string) (Config, error) {
	err := godotenv.Load(files...)
	if err != nil && (len(files) > 0 || !errors.Is(err, fs.ErrNotExist)) {
		return Config{}, fmt.Errorf("failed to load env files: %w", err)
	}

	return parse(env.Options{})
}

// Parse builds a Config from environ only, ignoring the process environment.
func Parse(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config

	err := env.ParseWithOptions(&cfg, opts)
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	if cfg.Telemetry.KubernetesHost != "" {
		if cfg.Telemetry.TracesEndpoint == "" {
			cfg.Telemetry.TracesEndpoint = kubernetesCollectorEndpoint
		}

		if cfg.Telemetry.LogsEndpoint == "" {
			cfg.Telemetry.LogsEndpoint = kubernetesCollectorEndpoint
		}
	}

	return cfg, nil
}

// Options converts the log settings for logger.ConfigureLoggingWithOptions.
func (c LogConfig) Options() (logger.Options, error) {
	level, err := logger.ParseLevel(c.Level)
	if err != nil {
		return logger.Options{}, err
	}

	return logger.Options{
		Subsystem: c.Subsystem,
		JSON:      c.JSON,
		MinLevel:  level,
		Colors:    c.Color,
	}, nil
}

// Options converts the visualisation defaults into explicit renderer options.
func (c VizConfig) Options() (visualizer.Options, error) {
	format, err := visualizer.ParseFormat(c.Format)
	if err != nil {
		return visualizer.Options{}, err
	}

	opts := visualizer.DefaultOptions()
	opts.Format = format
	opts.FontName = c.FontName
	opts.FontSize = c.FontSize
	opts.NodeShape = c.NodeShape
	opts.EdgeStyle = c.EdgeStyle
	opts.BgColor = c.BgColor
	opts.Direction = c.Direction
	opts.ShowGuards = c.ShowGuards
	opts.ShowActions = c.ShowActions
	opts.HighlightCurrent = c.HighlightCurrent

	return opts, nil
}

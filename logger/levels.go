package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Severity levels beyond the four built into slog. They sit between the
// standard levels so that level comparisons keep working.
const (
	LevelDebug     = slog.LevelDebug
	LevelInfo      = slog.LevelInfo
	LevelNotice    = slog.Level(2)
	LevelWarn      = slog.LevelWarn
	LevelError     = slog.LevelError
	LevelCritical  = slog.Level(12)
	LevelAlert     = slog.Level(16)
	LevelEmergency = slog.Level(20)
)

// ErrInvalidLevel is returned by ParseLevel for an unknown level name.
var ErrInvalidLevel = errors.New("invalid log level")

const (
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorReset   = "\x1b[0m"
)

// ParseLevel converts a level name (case insensitive) to a slog level.
// Both the short and long spellings are accepted, e.g. "warn" and "warning".
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	case "crit", "critical":
		return LevelCritical, nil
	case "alert":
		return LevelAlert, nil
	case "emerg", "emergency":
		return LevelEmergency, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, name)
	}
}

// LevelName returns the display name of a level. Levels between the named
// ones are rounded down to the nearest named level.
func LevelName(level slog.Level) string {
	switch {
	case level >= LevelEmergency:
		return "EMERG"
	case level >= LevelAlert:
		return "ALERT"
	case level >= LevelCritical:
		return "CRIT"
	case level >= LevelError:
		return "ERROR"
	case level >= LevelWarn:
		return "WARN"
	case level >= LevelNotice:
		return "NOTICE"
	case level >= LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= LevelAlert:
		return colorMagenta
	case level >= LevelError:
		return colorRed
	case level >= LevelWarn:
		return colorYellow
	case level >= LevelNotice:
		return colorCyan
	case level >= LevelInfo:
		return colorGreen
	default:
		return colorBlue
	}
}

// replaceLevel renders the custom levels by name instead of as offsets
// ("INFO+2") in both text and JSON output.
func replaceLevel(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 || attr.Key != slog.LevelKey {
		return attr
	}

	level, ok := attr.Value.Any().(slog.Level)
	if !ok {
		return attr
	}

	return slog.String(slog.LevelKey, LevelName(level))
}

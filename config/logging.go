package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// UnmarshalText implements encoding.TextUnmarshaler for LogFormat.
func (f *LogFormat) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "json", "text":
		*f = LogFormat(v)
		return nil
	default:
		return fmt.Errorf("invalid LogFormat: %q (valid options: json, text)", v)
	}
}

// LogConfig controls the process logger. An empty Level means debug in dev and info otherwise.
type LogConfig struct {
	Level  string    `env:"LOG_LEVEL"`
	Format LogFormat `env:"LOG_FORMAT" envDefault:"json"`
}

// SlogLevel resolves Level, falling back on the dev default when unset or unparsable.
func (c LogConfig) SlogLevel(dev bool) slog.Level {
	var lvl slog.Level
	if c.Level != "" && lvl.UnmarshalText([]byte(c.Level)) == nil {
		return lvl
	}
	if dev {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (c LogConfig) validate() error {
	if c.Level == "" {
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

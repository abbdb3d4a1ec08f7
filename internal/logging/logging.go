// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

type Config struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// New returns a named hclog logger. An unknown level falls back to info.
func New(name string, cfg Config) hclog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level := hclog.LevelFromString(strings.TrimSpace(cfg.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Level:           level,
		Output:          out,
		JSONFormat:      cfg.JSON,
		IncludeLocation: level <= hclog.Debug,
	})
}

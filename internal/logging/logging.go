// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zerolog logger shared by the CLI, the engine,
// and the HTTP server, and carries it through context.Context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config captures options for building a logger.
type Config struct {
	Level   string    // "debug", "info", "warn", "error"; default info
	Format  string    // "console" or "json"; default console
	Output  io.Writer // default os.Stderr
	Service string    // attached to every entry when set
}

// New returns a logger configured from cfg. Unrecognized levels fall back to info.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: out != os.Stderr}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	lc := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		lc = lc.Str("service", cfg.Service)
	}
	return lc.Logger()
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		l := zerolog.Nop()
		return &l
	}
	return zerolog.Ctx(ctx)
}

// WithComponent returns the context logger annotated with a component name.
func WithComponent(ctx context.Context, component string) zerolog.Logger {
	return FromContext(ctx).With().Str("component", component).Logger()
}

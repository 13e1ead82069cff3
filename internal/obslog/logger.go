// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package obslog provides the structured logger shared by every SDK
// subsystem. It wraps slog so that pool, wallet, and anoncreds code log
// consistently without each package picking its own format.
package obslog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with the SDK's default field conventions.
type Logger struct {
	*slog.Logger
}

// Config controls output format and destination.
type Config struct {
	Level      slog.Level
	Format     string // "json" or "text"
	Output     io.Writer
	AddSource  bool
}

// DefaultConfig returns text logging to stderr at Info level.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "text", Output: os.Stderr}
}

// New builds a Logger from cfg, defaulting any zero fields.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Component returns a child logger tagging every record with "component".
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// WithHandle tags every record with a pool/wallet handle for correlation.
func (l *Logger) WithHandle(kind string, handle int) *Logger {
	return &Logger{Logger: l.Logger.With(kind+"_handle", handle)}
}

var std = New(DefaultConfig())

// Default returns the process-wide default logger.
func Default() *Logger { return std }

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) { std = l }

// Ctx returns the logger with fields drawn from ctx, falling back to the
// default logger when ctx carries none.
func Ctx(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return std
}

type ctxKey struct{}

// WithContext returns a context carrying l for later retrieval via Ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Package logging provides the dependency-injected structured logger used
// across chatsearch's components.
//
// Logging is never global: each component is constructed with a *slog.Logger
// (or nil, meaning "discard") and scopes it once with a "component" attribute.
// Output format, level, and destination are main()'s concern alone; nothing
// under internal/ calls slog.SetDefault.
package logging

import (
	"context"
	"log/slog"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops everything written to it.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. The
// standard pattern for an optional *slog.Logger constructor parameter:
//
//	func Open(path string, logger *slog.Logger) (*Store, error) {
//	    logger = logging.Default(logger).With("component", "store")
//	    ...
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

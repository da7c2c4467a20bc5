// Package logging defines the structured-logging interface used across
// saasgate and its slog and zap implementations.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "tenant resolved", "tenant_id", id, "domain", domain)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Backend names accepted by New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New builds a JSON logger writing to w with the given backend and level
// (debug, info, warn, error).
func New(backend, level string, w io.Writer) (Logger, error) {
	switch strings.ToLower(backend) {
	case "", BackendSlog:
		lvl, err := parseSlogLevel(level)
		if err != nil {
			return nil, err
		}
		return NewSlogJSON(w, lvl), nil
	case BackendZap:
		return NewZapJSON(w, level)
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// Package logging provides a thin wrapper around zerolog.Logger with
// role-scoped constructors and context-carrying helpers, used by both the
// vaultd server and the vaultctl CLI instead of reaching for the global
// zerolog logger directly.
package logging

import (
	"context"
	"net/http"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger embeds zerolog.Logger so the full zerolog API stays available on
// the wrapper; application code should pass *Logger around rather than
// depend on zerolog's package-level global.
type Logger struct {
	zerolog.Logger
}

// New builds a *Logger for the given role (e.g. "vaultd", "vaultctl",
// "syncclient"), writing JSON lines to w with a "role" field, a timestamp,
// and the calling function's name on every entry.
func New(role string, w *os.File) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	l := zerolog.New(w).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()
	return &Logger{l}
}

// Nop returns a *Logger that discards everything, for tests and for
// callers that pass no logger of their own.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// With returns a child logger carrying the receiver's fields plus whatever
// the caller adds before calling Logger() on the returned context.
func (l *Logger) With() zerolog.Context {
	return l.Logger.With()
}

// WithContext attaches l to ctx so downstream code can recover it via
// FromContext without threading a *Logger through every call signature.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext recovers the logger attached by WithContext; if none was
// attached it returns zerolog.DefaultContextLogger, or a disabled logger
// when that is unset — it never returns nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}

// FromRequest recovers the request-scoped logger attached by request
// middleware, falling back the same way FromContext does.
func FromRequest(r *http.Request) *Logger {
	return FromContext(r.Context())
}

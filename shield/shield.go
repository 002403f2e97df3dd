// Package shield provides the HTTP middleware applied in front of the
// timescrub host API: security headers suited to a page that frames
// archived replays, HEAD handling, JSON body limits and request IDs.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(archiveOrigin) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack, outermost first:
// HeadToGet → SecurityHeaders → MaxJSONBody → RequestID.
// frameOrigin is the archive origin replays are framed from.
func DefaultStack(frameOrigin string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders(frameOrigin)),
		MaxJSONBody(64 * 1024),
		RequestID,
	}
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

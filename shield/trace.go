package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/timescrub/idgen"
	"github.com/hazyhaar/timescrub/kit"
)

// RequestID tags each request with an ID, reusing a valid incoming
// X-Request-ID. The ID goes into the kit context, the response headers and
// a per-request logger stored under LoggerKey.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := idgen.Parse(r.Header.Get("X-Request-ID"))
		if err != nil {
			id = idgen.Request()
		}

		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, id)
		w.Header().Set("X-Request-ID", id)

		logger := slog.Default().With(
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("shield: request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

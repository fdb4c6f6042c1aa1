package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
)

// Recoverer turns a handler panic into a 500 INTERNAL_ERROR envelope. The
// log line carries the matched route and, on /pois/{id} routes, the POI id.
// printStack also writes the stack to stderr, for development.
func Recoverer(logger *slog.Logger, printStack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				attrs := []any{
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				// Routing has finished by the time the panic unwinds to here.
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						attrs = append(attrs, slog.String("route", pattern))
					}
					if id := rctx.URLParam("id"); id != "" {
						attrs = append(attrs, slog.String("poi_id", id))
					}
				}
				attrs = append(attrs,
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)
				logger.Error("panic recovered", attrs...)

				if printStack {
					debug.PrintStack()
				}

				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

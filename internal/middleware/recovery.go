package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/angeloszaimis/oracle-gateway/internal/response"
)

// Recovery returns a middleware that turns a panic into the unhandled-fault
// envelope {"error": "Internal server error", "details": ...} with HTTP 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Unhandled exception",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("error", rec),
					slog.String("stack", string(debug.Stack())))

				response.Unhandled(w, fmt.Sprint(rec))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

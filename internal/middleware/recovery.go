package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// serverErrorBody is the generic body for unhandled failures.
const serverErrorBody = `{"error":"Server error"}`

// Recoverer is a middleware that recovers from panics.
// It logs the panic with its stack and returns a generic 500 JSON error.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
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

				logger.Error("panic_recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				writeJSONError(w, http.StatusInternalServerError, serverErrorBody)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError writes a pre-encoded JSON error body.
func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

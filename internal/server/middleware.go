package server

import (
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/metrics"
)

// requestMetrics counts served requests by route template, method and status
func requestMetrics(m *metrics.Manager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(resp, r)

			route := "unknown"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveRequest(route, r.Method, strconv.Itoa(resp.statusCode))
		})
	}
}

// panicRecovery turns a handler panic into a 500
func panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logger.Error().
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic serving request")
				writeError(w, NewInternalErrorWithCause("Unexpected error", errPanic))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.statusCode = statusCode
}

// Flush keeps server-sent events working through the wrapper
func (r *responseWriter) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseWriter) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"golang-reservation-import-service/pkg/logger"
)

// requestLogger logs one line per request, tagged with the chi request ID
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				entry := log.WithFields(logger.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("Request failed")
					return
				}
				entry.Info("Request handled")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// requestLog returns a logger carrying the request ID of r
func (s *Server) requestLog(r *http.Request) logger.Logger {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		return s.logger.WithField("request_id", reqID)
	}
	return s.logger
}

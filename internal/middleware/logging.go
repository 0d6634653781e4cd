// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogMiddleware logs every HTTP request once it completes, tagged with the chi
// request id.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start),
				"remote":     r.RemoteAddr,
				"request_id": chimw.GetReqID(r.Context()),
			}).Info("HTTP Request")
		})
	}
}

// LogSyncOpen records a sync session attaching to the hub.
func LogSyncOpen(logger *logrus.Logger, session uuid.UUID, remoteAddr string) {
	logger.WithFields(logrus.Fields{
		"session": session,
		"remote":  remoteAddr,
	}).Info("Sync session opened")
}

// LogSyncClose records a sync session leaving the hub. err is the read error
// that ended it, nil for a clean close.
func LogSyncClose(logger *logrus.Logger, session uuid.UUID, remoteAddr string, err error) {
	entry := logger.WithFields(logrus.Fields{
		"session": session,
		"remote":  remoteAddr,
	})
	if err != nil {
		entry.WithError(err).Warn("Sync session closed")
		return
	}
	entry.Info("Sync session closed")
}

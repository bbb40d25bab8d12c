package httpapi

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithRecovery превращает панику обработчика в 500 и пишет access-лог.
func WithRecovery(next http.Handler, logger *log.Entry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  p,
				}).Error("http handler panicked")
				writeJSON(rec, http.StatusInternalServerError, ErrorResponse{
					Code:    http.StatusText(http.StatusInternalServerError),
					Message: "internal error",
				})
			}
			logger.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(started),
			}).Debug("http request")
		}()

		next.ServeHTTP(rec, r)
	})
}

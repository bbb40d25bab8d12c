package httpapi

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

var errBadRequest = errors.New("bad request")

// ErrorResponse — тело ответа при ошибке.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor сопоставляет доменные ошибки с HTTP-кодами.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		domain.IsDomainValidation(err),
		errors.Is(err, domain.ErrRestaurantNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOrderAlreadyExists), domain.IsVersionConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := err.Error()
	entry := h.logger.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
		message = "internal error"
	} else {
		entry.Warn("request rejected")
	}

	writeJSON(w, code, ErrorResponse{
		Code:    http.StatusText(code),
		Message: message,
	})
}

package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/service"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message})
}

// Failure maps a service error to its status code. Unexpected errors are
// logged and reported as a bare 500.
func Failure(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		write(w, http.StatusBadRequest, Envelope{
			Code:    http.StatusBadRequest,
			Message: verr.Error(),
			Data:    map[string]string{"field": verr.Field},
		})
	case errors.Is(err, service.ErrConsentRequired):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateEmail):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Warn("backend unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "5")
		Error(w, http.StatusServiceUnavailable, service.ErrStoreUnavailable.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package service

import (
	"errors"
	"fmt"

	"github.com/hongminglow/ekonzims-be/internal/storage"
)

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("admin access required")
	ErrUserNotFound          = errors.New("user not found")
	ErrNotFound              = errors.New("not found")
	ErrStoreUnavailable      = errors.New("store unavailable, retry later")
	ErrConsentRequired       = errors.New("terms and privacy policy must be accepted")
)

// ValidationError names the request field that must be fixed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// storeError maps transient backend failures to ErrStoreUnavailable and wraps
// everything else with op.
func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

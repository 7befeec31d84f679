package service

import (
	"context"
	"errors"

	"github.com/hongminglow/ekonzims-be/internal/models"
)

// AdminGate admits only callers whose stored role is admin. The role is read
// from the store, so a promotion takes effect on the next request.
type AdminGate struct {
	auth *AuthService
}

func NewAdminGate(auth *AuthService) *AdminGate {
	return &AdminGate{auth: auth}
}

// Authorize fails with ErrUnauthorized for a bad or orphaned token and with
// ErrForbidden for a non-admin.
func (g *AdminGate) Authorize(ctx context.Context, bearer string) (models.User, error) {
	user, _, err := g.auth.Authenticate(ctx, bearer)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrUnauthorized
		}
		return models.User{}, err
	}
	if !user.IsAdmin() {
		return models.User{}, ErrForbidden
	}
	return user, nil
}

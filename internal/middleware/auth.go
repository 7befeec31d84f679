package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/http/respond"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/service"
)

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (models.User, auth.Claims, error)
}

// AdminAuthorizer admits admins only.
type AdminAuthorizer interface {
	Authorize(ctx context.Context, bearer string) (models.User, error)
}

// WithUser stores the authenticated user on ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the user stored by RequireUser or RequireAdmin.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireUser rejects requests without a valid session.
func RequireUser(authenticator Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _, err := authenticator.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				if errors.Is(err, service.ErrUserNotFound) {
					err = service.ErrUnauthorized
				}
				respond.Failure(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects requests from anyone but an admin.
func RequireAdmin(gate AdminAuthorizer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.Authorize(r.Context(), BearerToken(r))
			if err != nil {
				respond.Failure(w, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

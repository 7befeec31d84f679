package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/ekonzims-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInvalidToken indicates no record holds an unexpired matching single-use token.
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrUnavailable indicates a transient backend failure, such as a timeout or lost connection.
var ErrUnavailable = errors.New("store unavailable")

// PasswordResetTTL bounds the lifetime of a password reset token.
const PasswordResetTTL = time.Hour

// UserStore captures persistence operations on user records. Implementations
// must make first-admin assignment, email uniqueness and token consumption atomic.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	// CreateUser inserts user. The first user created in an empty store is stored with RoleAdmin.
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	// VerifyEmail consumes an email verification token.
	VerifyEmail(ctx context.Context, token string) (models.User, error)
	// GeneratePasswordResetToken stores a fresh reset token for email, replacing any previous one.
	GeneratePasswordResetToken(ctx context.Context, email string) (string, error)
	// ResetPassword consumes a reset token and stores passwordHash.
	ResetPassword(ctx context.Context, token, passwordHash string) (models.User, error)
	PromoteToAdmin(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteAllUsers(ctx context.Context) error
}

// OrderStore persists product orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)
	FindOrder(ctx context.Context, id string) (models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

// BookingStore persists service bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking models.Booking) (models.Booking, error)
	FindBooking(ctx context.Context, id string) (models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
}

// NewOpaqueToken returns 32 random bytes hex encoded, used for verification and reset tokens.
func NewOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Unavailable wraps err so callers can match ErrUnavailable while keeping the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

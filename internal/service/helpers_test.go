package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/campaign"
	"github.com/hongminglow/ekonzims-be/internal/email/emailtest"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/storage"
	"github.com/hongminglow/ekonzims-be/internal/storage/memory"
)

var cheapArgon2 = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type env struct {
	users    *memory.UserStore
	orders   *memory.OrderStore
	bookings *memory.BookingStore
	mail     *emailtest.Recorder
	tokens   *auth.TokenManager
	revoker  *auth.MemoryRevoker
	auth     *AuthService
	gate     *AdminGate
	commerce *CommerceService
	admin    *AdminService
}

func newEnv(t *testing.T, opts AuthOptions) *env {
	t.Helper()
	e := &env{
		users:    memory.NewUserStore(nil),
		orders:   memory.NewOrderStore(),
		bookings: memory.NewBookingStore(),
		mail:     &emailtest.Recorder{},
		tokens:   auth.NewTokenManager("test-secret", "ekonzims-test", time.Hour),
		revoker:  auth.NewMemoryRevoker(),
	}
	if opts.FrontendURL == "" {
		opts.FrontendURL = "http://shop.test"
	}
	logger := zap.NewNop()
	e.auth = NewAuthService(e.users, auth.NewPasswordHasher(cheapArgon2), e.tokens, e.revoker, e.mail, opts, logger)
	e.gate = NewAdminGate(e.auth)
	e.commerce = NewCommerceService(e.orders, e.bookings, e.mail, logger)
	runner := campaign.NewRunner(e.users, e.orders, e.bookings, e.mail, opts.FrontendURL, logger)
	e.admin = NewAdminService(e.users, e.orders, e.bookings, runner, e.mail, opts.AllowFullName, logger)
	return e
}

func registration(addr string) dto.RegisterRequest {
	return dto.RegisterRequest{
		Email:           addr,
		Password:        "secret123",
		FirstName:       "Alice",
		LastName:        "Martin",
		TermsAccepted:   true,
		PrivacyAccepted: true,
	}
}

func (e *env) register(t *testing.T, addr string) dto.AuthResponse {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), registration(addr))
	if err != nil {
		t.Fatalf("register %s: %v", addr, err)
	}
	return resp
}

func (e *env) user(t *testing.T, id string) models.User {
	t.Helper()
	u, err := e.users.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find %s: %v", id, err)
	}
	return u
}

// downStore fails every call as an unreachable backend would.
type downStore struct {
	storage.UserStore
}

var errDown = storage.Unavailable("find user", context.DeadlineExceeded)

func (downStore) FindByEmail(context.Context, string) (models.User, error) {
	return models.User{}, errDown
}

func (downStore) CreateUser(context.Context, models.User) (models.User, error) {
	return models.User{}, errDown
}

func (downStore) GeneratePasswordResetToken(context.Context, string) (string, error) {
	return "", errDown
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	if verr.Field != field {
		t.Fatalf("validation field = %q, want %q", verr.Field, field)
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/auth"
	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/storage/memory"
)

// stallTransport holds every delivery until release is closed, like a mail
// provider that stopped answering.
type stallTransport struct {
	started chan email.Message
	release chan struct{}
}

func (s *stallTransport) Deliver(ctx context.Context, msg email.Message) error {
	s.started <- msg
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queuedEnv wires the services to a background queue in front of a stalled
// transport, the way the server runs them.
func queuedEnv(t *testing.T) (*env, *stallTransport) {
	t.Helper()
	stall := &stallTransport{started: make(chan email.Message, 16), release: make(chan struct{})}
	logger := zap.NewNop()
	q := email.NewQueue(email.NewMailer(stall, nil, logger), 16, 2, logger)
	t.Cleanup(func() {
		close(stall.release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.Close(ctx); err != nil {
			t.Errorf("close queue: %v", err)
		}
	})

	e := &env{
		users:    memory.NewUserStore(nil),
		orders:   memory.NewOrderStore(),
		bookings: memory.NewBookingStore(),
		tokens:   auth.NewTokenManager("test-secret", "ekonzims-test", time.Hour),
		revoker:  auth.NewMemoryRevoker(),
	}
	e.auth = NewAuthService(e.users, auth.NewPasswordHasher(cheapArgon2), e.tokens, e.revoker, q,
		AuthOptions{FrontendURL: "http://shop.test"}, logger)
	e.commerce = NewCommerceService(e.orders, e.bookings, q, logger)
	return e, stall
}

// within fails the test if fn has not returned after d.
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s waited on the mail provider", what)
	}
}

func awaitSend(t *testing.T, stall *stallTransport, kind email.Kind) {
	t.Helper()
	select {
	case msg := <-stall.started:
		if msg.Kind != kind {
			t.Fatalf("sent %s, want %s", msg.Kind, kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s never reached the transport", kind)
	}
}

func TestRegisterReturnsWhileMailStalls(t *testing.T) {
	e, stall := queuedEnv(t)
	var resp dto.AuthResponse
	var err error
	within(t, 3*time.Second, "register", func() {
		resp, err = e.auth.Register(context.Background(), registration("slow@example.com"))
	})
	if err != nil || resp.Token == "" {
		t.Fatalf("register = %+v, %v", resp, err)
	}
	awaitSend(t, stall, email.KindVerifyEmail)
}

func TestForgotPasswordSameForKnownAndUnknown(t *testing.T) {
	e, stall := queuedEnv(t)
	if _, err := e.auth.Register(context.Background(), registration("known@example.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	awaitSend(t, stall, email.KindVerifyEmail)

	for _, addr := range []string{"known@example.com", "ghost@example.com"} {
		var err error
		within(t, 3*time.Second, "forgot password for "+addr, func() {
			err = e.auth.ForgotPassword(context.Background(), addr)
		})
		if err != nil {
			t.Fatalf("%s: %v", addr, err)
		}
	}
	// The reset for the known account is still stuck in the transport, yet
	// the call above already returned.
	awaitSend(t, stall, email.KindPasswordReset)
}

func TestOrderAndBookingReturnWhileMailStalls(t *testing.T) {
	e, stall := queuedEnv(t)
	resp, err := e.auth.Register(context.Background(), registration("buyer@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	awaitSend(t, stall, email.KindVerifyEmail)
	buyer, err := e.users.FindByID(context.Background(), resp.User.ID)
	if err != nil {
		t.Fatalf("find buyer: %v", err)
	}

	within(t, 3*time.Second, "place order", func() {
		_, err = e.commerce.PlaceOrder(context.Background(), buyer, dto.OrderRequest{
			Items:           []dto.OrderItemRequest{{ProductID: "1", Quantity: 1, Price: decimal.NewFromInt(1)}},
			ShippingAddress: models.Address{Street: "1 rue", City: "Paris", PostalCode: "75001"},
		})
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	awaitSend(t, stall, email.KindOrderConfirmation)

	within(t, 3*time.Second, "book service", func() {
		_, err = e.commerce.BookService(context.Background(), buyer, dto.BookingRequest{
			ServiceID:     "1",
			ScheduledDate: "2025-12-10T10:00",
		})
	})
	if err != nil {
		t.Fatalf("book service: %v", err)
	}
	awaitSend(t, stall, email.KindBookingConfirmation)
}

// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

// UserStoreFactory returns an empty store. It is called once per subtest.
type UserStoreFactory func(t *testing.T) storage.UserStore

func user(email string) models.User {
	return models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "digest",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

// RunUserStore exercises the UserStore contract against fresh stores from newStore.
func RunUserStore(t *testing.T, newStore UserStoreFactory) {
	t.Run("round trip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		token := "verify"
		expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Millisecond)
		accepted := time.Now().UTC().Truncate(time.Millisecond)
		in := user("full@example.com")
		in.FirstName, in.LastName, in.Phone = "Alice", "Martin", "+243000"
		in.Address = models.Address{Street: "1 rue", City: "Kinshasa", PostalCode: "001"}
		in.Location = &models.GeoPoint{Latitude: -4.3, Longitude: 15.3}
		in.EmailVerificationToken = &token
		in.EmailVerificationExpiresAt = &expires
		in.Consent = models.Consent{
			TermsAccepted: true, TermsAcceptedAt: &accepted,
			PrivacyAccepted: true, PrivacyAcceptedAt: &accepted,
			MarketingConsent: true,
		}
		if _, err := s.CreateUser(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.FindByID(ctx, in.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Email != in.Email || got.FirstName != "Alice" || got.LastName != "Martin" || got.Address != in.Address {
			t.Fatalf("fields lost: %+v", got)
		}
		if got.Location == nil || *got.Location != *in.Location {
			t.Fatalf("location lost: %+v", got.Location)
		}
		if got.EmailVerificationToken == nil || *got.EmailVerificationToken != token {
			t.Fatal("verification token lost")
		}
		if got.EmailVerificationExpiresAt == nil || !got.EmailVerificationExpiresAt.Equal(expires) {
			t.Fatalf("verification expiry lost: %v", got.EmailVerificationExpiresAt)
		}
		if got.PasswordResetToken != nil || got.PasswordResetExpiresAt != nil {
			t.Fatal("null reset pair must stay null")
		}
		if !got.Consent.TermsAccepted || got.Consent.TermsAcceptedAt == nil || !got.Consent.MarketingConsent || got.Consent.GeolocalizationConsent {
			t.Fatalf("consent lost: %+v", got.Consent)
		}
		byEmail, err := s.FindByEmail(ctx, in.Email)
		if err != nil || byEmail.ID != in.ID {
			t.Fatalf("find by email: %v", err)
		}
		if _, err := s.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("missing email: %v", err)
		}
	})

	t.Run("first user admin and duplicates", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		first, err := s.CreateUser(ctx, user("first@example.com"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		second, err := s.CreateUser(ctx, user("second@example.com"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if first.Role != models.RoleAdmin || second.Role != models.RoleUser {
			t.Fatalf("roles %q %q", first.Role, second.Role)
		}
		if _, err := s.CreateUser(ctx, user("first@example.com")); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("duplicate: %v", err)
		}
	})

	t.Run("concurrent first registrations", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		const n = 16
		var wg sync.WaitGroup
		var admins atomic.Int32
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u, err := s.CreateUser(ctx, user(fmt.Sprintf("c%d@example.com", i)))
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				if u.Role == models.RoleAdmin {
					admins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		if admins.Load() != 1 {
			t.Fatalf("admins = %d", admins.Load())
		}
	})

	t.Run("reset token single use", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		u, _ := s.CreateUser(ctx, user("reset@example.com"))
		token, err := s.GeneratePasswordResetToken(ctx, u.Email)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		var wg sync.WaitGroup
		var ok atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ResetPassword(ctx, token, "new"); err == nil {
					ok.Add(1)
				} else if !errors.Is(err, storage.ErrInvalidToken) {
					t.Errorf("reset: %v", err)
				}
			}()
		}
		wg.Wait()
		if ok.Load() != 1 {
			t.Fatalf("successful resets = %d", ok.Load())
		}
		got, _ := s.FindByID(ctx, u.ID)
		if got.PasswordHash != "new" || got.PasswordResetToken != nil {
			t.Fatalf("reset state %+v", got)
		}
		if _, err := s.GeneratePasswordResetToken(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("unknown email: %v", err)
		}
	})

	t.Run("verify email single use", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		token := "tok-" + uuid.NewString()
		expires := time.Now().Add(time.Hour)
		in := user("verify@example.com")
		in.EmailVerificationToken = &token
		in.EmailVerificationExpiresAt = &expires
		if _, err := s.CreateUser(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.VerifyEmail(ctx, token)
		if err != nil || !got.EmailVerified || got.EmailVerificationToken != nil {
			t.Fatalf("verify: %v %+v", err, got)
		}
		if _, err := s.VerifyEmail(ctx, token); !errors.Is(err, storage.ErrInvalidToken) {
			t.Fatalf("second verify: %v", err)
		}
	})

	t.Run("promote list and wipe", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.CreateUser(ctx, user("a@example.com"))
		b, _ := s.CreateUser(ctx, user("b@example.com"))
		for i := 0; i < 2; i++ {
			got, err := s.PromoteToAdmin(ctx, b.ID)
			if err != nil || got.Role != models.RoleAdmin {
				t.Fatalf("promote #%d: %v %q", i, err, got.Role)
			}
		}
		if _, err := s.PromoteToAdmin(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("promote missing: %v", err)
		}
		users, err := s.ListUsers(ctx)
		if err != nil || len(users) != 2 {
			t.Fatalf("list: %v %d", err, len(users))
		}
		if err := s.DeleteAllUsers(ctx); err != nil {
			t.Fatalf("wipe: %v", err)
		}
		users, _ = s.ListUsers(ctx)
		if len(users) != 0 {
			t.Fatalf("users after wipe = %d", len(users))
		}
		again, err := s.CreateUser(ctx, user("c@example.com"))
		if err != nil || again.Role != models.RoleAdmin {
			t.Fatalf("first after wipe: %v %q", err, again.Role)
		}
	})
}

// RunOrderStores exercises order and booking persistence.
func RunOrderStores(t *testing.T, orders storage.OrderStore, bookings storage.BookingStore) {
	ctx := context.Background()
	userID := uuid.NewString()
	order := models.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Savon", Quantity: 2, Price: decimal.RequireFromString("8.50")},
		},
		TotalAmount:     decimal.RequireFromString("17.00"),
		ShippingAddress: models.Address{City: "Kinshasa"},
		Status:          models.StatusPending,
		PaymentMethod:   models.PaymentOnDelivery,
		PaymentStatus:   models.PaymentPending,
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := orders.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	got, err := orders.FindOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if !got.TotalAmount.Equal(order.TotalAmount) || len(got.Items) != 1 || !got.Items[0].Price.Equal(order.Items[0].Price) {
		t.Fatalf("order mismatch: %+v", got)
	}
	mine, err := orders.ListOrdersByUser(ctx, userID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("orders by user: %v %d", err, len(mine))
	}
	if _, err := orders.FindOrder(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}

	booking := models.Booking{
		ID:            uuid.NewString(),
		UserID:        userID,
		ServiceID:     "1",
		ServiceName:   "Apartment cleaning",
		ScheduledAt:   time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
		Status:        models.StatusPending,
		Price:         decimal.RequireFromString("50"),
		PaymentMethod: models.PaymentOnline,
		PaymentStatus: models.PaymentPaid,
		CardNumber:    "****4242",
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := bookings.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	gotBooking, err := bookings.FindBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("find booking: %v", err)
	}
	if !gotBooking.Price.Equal(booking.Price) || !gotBooking.ScheduledAt.Equal(booking.ScheduledAt) || gotBooking.CardNumber != "****4242" {
		t.Fatalf("booking mismatch: %+v", gotBooking)
	}
	all, err := bookings.ListBookingsByUser(ctx, userID)
	if err != nil || len(all) != 1 {
		t.Fatalf("bookings by user: %v %d", err, len(all))
	}
}

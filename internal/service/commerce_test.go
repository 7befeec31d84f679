package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
)

func TestPlaceOrder(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	resp := e.register(t, "alice@example.com")
	alice := e.user(t, resp.User.ID)

	order, err := e.commerce.PlaceOrder(context.Background(), alice, dto.OrderRequest{
		Items: []dto.OrderItemRequest{
			{ProductID: "1", Name: "ignored", Quantity: 2, Price: decimal.NewFromInt(1)},
			{ProductID: "custom", Name: "Brosse", Quantity: 1, Price: decimal.RequireFromString("4.50")},
		},
		ShippingAddress: models.Address{Street: "1 rue", City: "Paris", PostalCode: "75001"},
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.TotalAmount.StringFixed(2) != "24.48" {
		t.Fatalf("total = %s", order.TotalAmount)
	}
	if order.Items[0].Name != "Savon Écologique" {
		t.Fatalf("catalog name not applied: %+v", order.Items[0])
	}
	if order.Status != models.StatusPending || order.PaymentMethod != models.PaymentOnDelivery || order.PaymentStatus != models.PaymentPending {
		t.Fatalf("order state = %+v", order)
	}
	sent, ok := e.mail.Last(email.KindOrderConfirmation)
	if !ok || sent.Data["Total"] != "24.48" || sent.To != "alice@example.com" {
		t.Fatalf("confirmation = %+v", sent)
	}

	mine, err := e.commerce.ListMyOrders(context.Background(), alice)
	if err != nil || len(mine) != 1 {
		t.Fatalf("my orders = %v, %v", mine, err)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	u := models.User{ID: "u1", Email: "u@example.com"}
	cases := []struct {
		name  string
		items []dto.OrderItemRequest
		field string
	}{
		{"no items", nil, "items"},
		{"zero quantity", []dto.OrderItemRequest{{Name: "X", Quantity: 0, Price: decimal.NewFromInt(1)}}, "items.quantity"},
		{"negative price", []dto.OrderItemRequest{{Name: "X", Quantity: 1, Price: decimal.NewFromInt(-1)}}, "items.price"},
		{"no name", []dto.OrderItemRequest{{ProductID: "unknown", Quantity: 1}}, "items.name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.commerce.PlaceOrder(context.Background(), u, dto.OrderRequest{Items: tc.items})
			assertValidation(t, err, tc.field)
		})
	}
}

func TestBookService(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	u := models.User{ID: "u1", Email: "u@example.com", Phone: "+33100000000", Address: models.Address{City: "Lyon"}}

	booking, err := e.commerce.BookService(context.Background(), u, dto.BookingRequest{
		ServiceID:     "2",
		ScheduledDate: "2025-12-10T10:00",
		PaymentMethod: "online",
		CardNumber:    "4242 4242 4242 1234",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booking.Price.String() != "100" || booking.ServiceName != "Nettoyage Maison" {
		t.Fatalf("booking = %+v", booking)
	}
	if booking.PaymentStatus != models.PaymentPaid || booking.CardNumber != "****1234" {
		t.Fatalf("payment = %s card = %q", booking.PaymentStatus, booking.CardNumber)
	}
	if booking.Phone != u.Phone || booking.Address.City != "Lyon" {
		t.Fatalf("defaults not applied: %+v", booking)
	}
	sent, ok := e.mail.Last(email.KindBookingConfirmation)
	if !ok || sent.Data["ScheduledDate"] != "10/12/2025 10:00" {
		t.Fatalf("confirmation = %+v", sent)
	}

	cash, err := e.commerce.BookService(context.Background(), u, dto.BookingRequest{ServiceID: "4", ScheduledDate: "2025-12-11", PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("book cash: %v", err)
	}
	if cash.PaymentStatus != models.PaymentPending || cash.CardNumber != "" {
		t.Fatalf("cash booking = %+v", cash)
	}
}

func TestBookServiceErrors(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	u := models.User{ID: "u1", Email: "u@example.com"}
	if _, err := e.commerce.BookService(context.Background(), u, dto.BookingRequest{ServiceID: "99", ScheduledDate: "2025-12-10"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown service: got %v", err)
	}
	_, err := e.commerce.BookService(context.Background(), u, dto.BookingRequest{ServiceID: "1", ScheduledDate: "tomorrow"})
	assertValidation(t, err, "scheduledDate")
	_, err = e.commerce.BookService(context.Background(), u, dto.BookingRequest{ServiceID: "1", ScheduledDate: "2025-12-10", PaymentMethod: "bitcoin"})
	assertValidation(t, err, "paymentMethod")
}

func TestGetOrderOwnership(t *testing.T) {
	e := newEnv(t, AuthOptions{})
	owner := models.User{ID: "owner", Email: "o@example.com", Role: models.RoleUser}
	other := models.User{ID: "other", Email: "x@example.com", Role: models.RoleUser}
	admin := models.User{ID: "admin", Email: "a@example.com", Role: models.RoleAdmin}

	order, err := e.commerce.PlaceOrder(context.Background(), owner, dto.OrderRequest{
		Items: []dto.OrderItemRequest{{ProductID: "3", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := e.commerce.GetOrder(context.Background(), owner, order.ID); err != nil {
		t.Fatalf("owner: %v", err)
	}
	if _, err := e.commerce.GetOrder(context.Background(), admin, order.ID); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if _, err := e.commerce.GetOrder(context.Background(), other, order.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other: got %v", err)
	}
	if _, err := e.commerce.GetOrder(context.Background(), owner, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestMaskCard(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"4242424242421234":    "****1234",
		"4242-4242-4242-9876": "****9876",
		"12":                  "****12",
	}
	for in, want := range cases {
		if got := maskCard(in); got != want {
			t.Errorf("maskCard(%q) = %q, want %q", in, got, want)
		}
	}
}

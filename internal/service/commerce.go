package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/catalog"
	"github.com/hongminglow/ekonzims-be/internal/email"
	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/models/dto"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

var scheduleLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// CommerceService places orders and bookings for authenticated users.
type CommerceService struct {
	orders   storage.OrderStore
	bookings storage.BookingStore
	mailer   email.Dispatcher
	logger   *zap.Logger
	now      func() time.Time
}

func NewCommerceService(orders storage.OrderStore, bookings storage.BookingStore, mailer email.Dispatcher, logger *zap.Logger) *CommerceService {
	return &CommerceService{orders: orders, bookings: bookings, mailer: mailer, logger: logger, now: time.Now}
}

// PlaceOrder prices the order server side. Catalog products use the catalog
// price and name.
func (s *CommerceService) PlaceOrder(ctx context.Context, user models.User, req dto.OrderRequest) (models.Order, error) {
	if len(req.Items) == 0 {
		return models.Order{}, invalid("items", "at least one item is required")
	}
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := models.OrderItem{
			ProductID: strings.TrimSpace(in.ProductID),
			Name:      strings.TrimSpace(in.Name),
			Quantity:  in.Quantity,
			Price:     in.Price,
		}
		if p, ok := catalog.ProductByID(item.ProductID); ok {
			item.Name = p.Name
			item.Price = p.Price
		}
		switch {
		case item.Name == "":
			return models.Order{}, invalid("items.name", "is required")
		case item.Quantity < 1:
			return models.Order{}, invalid("items.quantity", "must be at least 1")
		case item.Price.IsNegative():
			return models.Order{}, invalid("items.price", "must not be negative")
		}
		items = append(items, item)
	}

	order := models.Order{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		Status:          models.StatusPending,
		PaymentMethod:   models.PaymentOnDelivery,
		PaymentStatus:   models.PaymentPending,
		CreatedAt:       s.now().UTC(),
	}
	if order.ShippingAddress == (models.Address{}) {
		order.ShippingAddress = user.Address
	}
	for _, item := range items {
		order.TotalAmount = order.TotalAmount.Add(item.Subtotal())
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return models.Order{}, storeError("create order", err)
	}

	lines := make([]email.ItemLine, 0, len(created.Items))
	for _, item := range created.Items {
		lines = append(lines, email.ItemLine{Name: item.Name, Quantity: item.Quantity, Subtotal: item.Subtotal().StringFixed(2)})
	}
	s.mailer.Send(ctx, email.KindOrderConfirmation, user.Email, email.Data{
		"OrderID": created.ID,
		"Items":   lines,
		"Total":   created.TotalAmount.StringFixed(2),
	})
	s.logger.Info("order placed", zap.String("order_id", created.ID), zap.String("total", created.TotalAmount.StringFixed(2)))
	return created, nil
}

// BookService reserves a catalog service. Online payments are recorded as paid.
func (s *CommerceService) BookService(ctx context.Context, user models.User, req dto.BookingRequest) (models.Booking, error) {
	svc, ok := catalog.ServiceByID(strings.TrimSpace(req.ServiceID))
	if !ok {
		return models.Booking{}, ErrNotFound
	}
	scheduled, err := parseSchedule(req.ScheduledDate)
	if err != nil {
		return models.Booking{}, err
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = models.PaymentOnline
	}
	switch method {
	case models.PaymentOnline, models.PaymentCash, models.PaymentOnDelivery:
	default:
		return models.Booking{}, invalid("paymentMethod", "must be online, cash or on_delivery")
	}

	booking := models.Booking{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		ScheduledAt:   scheduled,
		Address:       req.Address,
		Phone:         strings.TrimSpace(req.Phone),
		Status:        models.StatusPending,
		Price:         svc.BasePrice,
		PaymentMethod: method,
		PaymentStatus: models.PaymentPending,
		CardNumber:    maskCard(req.CardNumber),
		CreatedAt:     s.now().UTC(),
	}
	if method == models.PaymentOnline {
		booking.PaymentStatus = models.PaymentPaid
	}
	if booking.Address == (models.Address{}) {
		booking.Address = user.Address
	}
	if booking.Phone == "" {
		booking.Phone = user.Phone
	}

	created, err := s.bookings.CreateBooking(ctx, booking)
	if err != nil {
		return models.Booking{}, storeError("create booking", err)
	}
	s.mailer.Send(ctx, email.KindBookingConfirmation, user.Email, email.Data{
		"BookingID":     created.ID,
		"ServiceName":   created.ServiceName,
		"ScheduledDate": created.ScheduledAt.Format("02/01/2006 15:04"),
	})
	s.logger.Info("service booked", zap.String("booking_id", created.ID), zap.String("service_id", svc.ID))
	return created, nil
}

func (s *CommerceService) ListMyOrders(ctx context.Context, user models.User) ([]models.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, user.ID)
	if err != nil {
		return nil, storeError("list orders", err)
	}
	return orders, nil
}

func (s *CommerceService) ListMyBookings(ctx context.Context, user models.User) ([]models.Booking, error) {
	bookings, err := s.bookings.ListBookingsByUser(ctx, user.ID)
	if err != nil {
		return nil, storeError("list bookings", err)
	}
	return bookings, nil
}

// GetOrder returns an order to its owner or an admin. Other callers get
// ErrNotFound so foreign ids look absent.
func (s *CommerceService) GetOrder(ctx context.Context, user models.User, id string) (models.Order, error) {
	order, err := s.orders.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Order{}, ErrNotFound
		}
		return models.Order{}, storeError("find order", err)
	}
	if order.UserID != user.ID && !user.IsAdmin() {
		return models.Order{}, ErrNotFound
	}
	return order, nil
}

func (s *CommerceService) GetBooking(ctx context.Context, user models.User, id string) (models.Booking, error) {
	booking, err := s.bookings.FindBooking(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Booking{}, ErrNotFound
		}
		return models.Booking{}, storeError("find booking", err)
	}
	if booking.UserID != user.ID && !user.IsAdmin() {
		return models.Booking{}, ErrNotFound
	}
	return booking, nil
}

func parseSchedule(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, invalid("scheduledDate", "is required")
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("scheduledDate", "must be an ISO 8601 date")
}

// maskCard keeps the last four digits: "****1234".
func maskCard(number string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return "****" + digits
}

package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

var (
	_ storage.OrderStore   = (*OrderStore)(nil)
	_ storage.BookingStore = (*BookingStore)(nil)
)

// OrderStore keeps orders in insertion order.
type OrderStore struct {
	mu     sync.RWMutex
	orders []models.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{}
}

func (s *OrderStore) CreateOrder(_ context.Context, order models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == order.ID {
			return models.Order{}, storage.ErrAlreadyExists
		}
	}
	order.Items = slices.Clone(order.Items)
	s.orders = append(s.orders, order)
	return order, nil
}

func (s *OrderStore) FindOrder(_ context.Context, id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			o.Items = slices.Clone(o.Items)
			return o, nil
		}
	}
	return models.Order{}, storage.ErrNotFound
}

func (s *OrderStore) ListOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			o.Items = slices.Clone(o.Items)
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *OrderStore) ListOrders(_ context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		out = append(out, o)
	}
	return out, nil
}

// BookingStore keeps bookings in insertion order.
type BookingStore struct {
	mu       sync.RWMutex
	bookings []models.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{}
}

func (s *BookingStore) CreateBooking(_ context.Context, booking models.Booking) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == booking.ID {
			return models.Booking{}, storage.ErrAlreadyExists
		}
	}
	s.bookings = append(s.bookings, booking)
	return booking, nil
}

func (s *BookingStore) FindBooking(_ context.Context, id string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return models.Booking{}, storage.ErrNotFound
}

func (s *BookingStore) ListBookingsByUser(_ context.Context, userID string) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BookingStore) ListBookings(_ context.Context) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Booking, len(s.bookings))
	copy(out, s.bookings)
	return out, nil
}

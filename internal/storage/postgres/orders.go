package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

const orderColumns = `id, user_id, items, total_amount::text, street, city, postal_code,
	status, payment_method, payment_status, created_at`

// CreateOrder inserts an order row.
func (s *Store) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return models.Order{}, fmt.Errorf("encode order items: %w", err)
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	const query = `
		INSERT INTO orders (id, user_id, items, total_amount, street, city, postal_code,
			status, payment_method, payment_status, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + orderColumns + `;`
	created, err := scanOrder(s.pool.QueryRow(ctx, query,
		order.ID, order.UserID, items, order.TotalAmount.String(),
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.PostalCode,
		order.Status, order.PaymentMethod, order.PaymentStatus, order.CreatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Order{}, storage.ErrAlreadyExists
		}
		return models.Order{}, s.classify("insert order", err)
	}
	return created, nil
}

// FindOrder fetches an order by id.
func (s *Store) FindOrder(ctx context.Context, id string) (models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1;`, id))
	return o, s.classifyLookup("find order", err)
}

// ListOrdersByUser returns a user's orders, oldest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at, id;`, userID)
}

// ListOrders returns every order, oldest first.
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id;`)
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.classify("list orders", err)
	}
	defer rows.Close()
	out := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, s.classify("scan order", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list orders", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o     models.Order
		items []byte
		total string
	)
	err := row.Scan(&o.ID, &o.UserID, &items, &total,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.PostalCode,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, storage.ErrNotFound
		}
		return models.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return models.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return models.Order{}, fmt.Errorf("decode order total: %w", err)
	}
	return o, nil
}

const bookingColumns = `id, user_id, service_id, service_name, scheduled_at, street, city, postal_code,
	phone, status, price::text, payment_method, payment_status, card_number, created_at`

// CreateBooking inserts a booking row.
func (s *Store) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	const query = `
		INSERT INTO bookings (id, user_id, service_id, service_name, scheduled_at, street, city, postal_code,
			phone, status, price, payment_method, payment_status, card_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14, $15)
		RETURNING ` + bookingColumns + `;`
	created, err := scanBooking(s.pool.QueryRow(ctx, query,
		b.ID, b.UserID, b.ServiceID, b.ServiceName, b.ScheduledAt,
		b.Address.Street, b.Address.City, b.Address.PostalCode, b.Phone,
		b.Status, b.Price.String(), b.PaymentMethod, b.PaymentStatus, b.CardNumber, b.CreatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Booking{}, storage.ErrAlreadyExists
		}
		return models.Booking{}, s.classify("insert booking", err)
	}
	return created, nil
}

// FindBooking fetches a booking by id.
func (s *Store) FindBooking(ctx context.Context, id string) (models.Booking, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1;`, id))
	return b, s.classifyLookup("find booking", err)
}

// ListBookingsByUser returns a user's bookings, oldest first.
func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at, id;`, userID)
}

// ListBookings returns every booking, oldest first.
func (s *Store) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return s.listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at, id;`)
}

func (s *Store) listBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.classify("list bookings", err)
	}
	defer rows.Close()
	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, s.classify("scan booking", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify("list bookings", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (models.Booking, error) {
	var (
		b     models.Booking
		price string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.ServiceID, &b.ServiceName, &b.ScheduledAt,
		&b.Address.Street, &b.Address.City, &b.Address.PostalCode, &b.Phone,
		&b.Status, &price, &b.PaymentMethod, &b.PaymentStatus, &b.CardNumber, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Booking{}, storage.ErrNotFound
		}
		return models.Booking{}, err
	}
	if b.Price, err = decimal.NewFromString(price); err != nil {
		return models.Booking{}, fmt.Errorf("decode booking price: %w", err)
	}
	return b, nil
}

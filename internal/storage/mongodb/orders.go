package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hongminglow/ekonzims-be/internal/models"
	"github.com/hongminglow/ekonzims-be/internal/storage"
)

// Decimals are stored as strings to keep exact values.

type orderItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Quantity  int    `bson:"quantity"`
	Price     string `bson:"price"`
}

type orderDoc struct {
	ID              string         `bson:"_id"`
	UserID          string         `bson:"user_id"`
	Items           []orderItemDoc `bson:"items"`
	TotalAmount     string         `bson:"total_amount"`
	ShippingAddress models.Address `bson:"shipping_address"`
	Status          string         `bson:"status"`
	PaymentMethod   string         `bson:"payment_method"`
	PaymentStatus   string         `bson:"payment_status"`
	CreatedAt       time.Time      `bson:"created_at"`
}

func toOrderDoc(o models.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDoc{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, Price: it.Price.String()})
	}
	return orderDoc{
		ID: o.ID, UserID: o.UserID, Items: items, TotalAmount: o.TotalAmount.String(),
		ShippingAddress: o.ShippingAddress, Status: o.Status, PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus, CreatedAt: o.CreatedAt,
	}
}

func (d orderDoc) model() (models.Order, error) {
	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return models.Order{}, fmt.Errorf("decode order total: %w", err)
	}
	items := make([]models.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return models.Order{}, fmt.Errorf("decode item price: %w", err)
		}
		items = append(items, models.OrderItem{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, Price: price})
	}
	return models.Order{
		ID: d.ID, UserID: d.UserID, Items: items, TotalAmount: total,
		ShippingAddress: d.ShippingAddress, Status: d.Status, PaymentMethod: d.PaymentMethod,
		PaymentStatus: d.PaymentStatus, CreatedAt: d.CreatedAt,
	}, nil
}

type bookingDoc struct {
	ID            string         `bson:"_id"`
	UserID        string         `bson:"user_id"`
	ServiceID     string         `bson:"service_id"`
	ServiceName   string         `bson:"service_name"`
	ScheduledAt   time.Time      `bson:"scheduled_at"`
	Address       models.Address `bson:"address"`
	Phone         string         `bson:"phone"`
	Status        string         `bson:"status"`
	Price         string         `bson:"price"`
	PaymentMethod string         `bson:"payment_method"`
	PaymentStatus string         `bson:"payment_status"`
	CardNumber    string         `bson:"card_number"`
	CreatedAt     time.Time      `bson:"created_at"`
}

func toBookingDoc(b models.Booking) bookingDoc {
	return bookingDoc{
		ID: b.ID, UserID: b.UserID, ServiceID: b.ServiceID, ServiceName: b.ServiceName,
		ScheduledAt: b.ScheduledAt, Address: b.Address, Phone: b.Phone, Status: b.Status,
		Price: b.Price.String(), PaymentMethod: b.PaymentMethod, PaymentStatus: b.PaymentStatus,
		CardNumber: b.CardNumber, CreatedAt: b.CreatedAt,
	}
}

func (d bookingDoc) model() (models.Booking, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return models.Booking{}, fmt.Errorf("decode booking price: %w", err)
	}
	return models.Booking{
		ID: d.ID, UserID: d.UserID, ServiceID: d.ServiceID, ServiceName: d.ServiceName,
		ScheduledAt: d.ScheduledAt, Address: d.Address, Phone: d.Phone, Status: d.Status,
		Price: price, PaymentMethod: d.PaymentMethod, PaymentStatus: d.PaymentStatus,
		CardNumber: d.CardNumber, CreatedAt: d.CreatedAt,
	}, nil
}

func (s *Store) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if _, err := s.orders.InsertOne(ctx, toOrderDoc(order)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Order{}, storage.ErrAlreadyExists
		}
		return models.Order{}, s.classify("insert order", err)
	}
	return order, nil
}

func (s *Store) FindOrder(ctx context.Context, id string) (models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	var d orderDoc
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Order{}, storage.ErrNotFound
		}
		return models.Order{}, s.classify("find order", err)
	}
	return d.model()
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.listOrders(ctx, bson.M{"user_id": userID})
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.listOrders(ctx, bson.M{})
}

func (s *Store) listOrders(ctx context.Context, filter bson.M) ([]models.Order, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	cur, err := s.orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, s.classify("list orders", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, s.classify("decode orders", err)
	}
	out := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.model()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking models.Booking) (models.Booking, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if _, err := s.bookings.InsertOne(ctx, toBookingDoc(booking)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Booking{}, storage.ErrAlreadyExists
		}
		return models.Booking{}, s.classify("insert booking", err)
	}
	return booking, nil
}

func (s *Store) FindBooking(ctx context.Context, id string) (models.Booking, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	var d bookingDoc
	if err := s.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Booking{}, storage.ErrNotFound
		}
		return models.Booking{}, s.classify("find booking", err)
	}
	return d.model()
}

func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.listBookings(ctx, bson.M{"user_id": userID})
}

func (s *Store) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return s.listBookings(ctx, bson.M{})
}

func (s *Store) listBookings(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	cur, err := s.bookings.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, s.classify("list bookings", err)
	}
	var docs []bookingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, s.classify("decode bookings", err)
	}
	out := make([]models.Booking, 0, len(docs))
	for _, d := range docs {
		b, err := d.model()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

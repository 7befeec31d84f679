package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order and booking lifecycle states.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment states.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Payment methods.
const (
	PaymentOnDelivery = "on_delivery"
	PaymentOnline     = "online"
	PaymentCash       = "cash"
)

// OrderItem is one line of a product order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a product purchase. Orders are append-only.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress Address         `json:"shippingAddress"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentStatus   string          `json:"paymentStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Booking is a reservation of a catalog service.
type Booking struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	ServiceID     string          `json:"serviceId"`
	ServiceName   string          `json:"serviceName"`
	ScheduledAt   time.Time       `json:"scheduledAt"`
	Address       Address         `json:"address"`
	Phone         string          `json:"phone,omitempty"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentStatus string          `json:"paymentStatus"`
	CardNumber    string          `json:"cardNumber,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

package dto

import (
	"github.com/shopspring/decimal"

	"github.com/hongminglow/ekonzims-be/internal/models"
)

type OrderItemRequest struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress models.Address     `json:"shippingAddress"`
}

type BookingRequest struct {
	ServiceID     string         `json:"serviceId"`
	ScheduledDate string         `json:"scheduledDate"`
	Address       models.Address `json:"address"`
	Phone         string         `json:"phone"`
	PaymentMethod string         `json:"paymentMethod"`
	CardNumber    string         `json:"cardNumber"`
}

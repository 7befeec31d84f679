// Package catalog holds the static product and service offering.
package catalog

import "github.com/shopspring/decimal"

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Stock    int             `json:"stock"`
}

type Service struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
	// Duration in minutes.
	Duration int    `json:"duration"`
	Category string `json:"category"`
}

var products = []Product{
	{ID: "1", Name: "Savon Écologique", Price: decimal.RequireFromString("9.99"), Category: "savons", Stock: 100},
	{ID: "2", Name: "Nettoyant Multi-Surface", Price: decimal.RequireFromString("12.99"), Category: "nettoyants", Stock: 150},
	{ID: "3", Name: "Détergent Bio", Price: decimal.RequireFromString("14.99"), Category: "detergents", Stock: 80},
	{ID: "4", Name: "Spray Désinfectant", Price: decimal.RequireFromString("10.99"), Category: "nettoyants", Stock: 120},
}

var services = []Service{
	{ID: "1", Name: "Nettoyage Appartement", BasePrice: decimal.NewFromInt(50), Duration: 120, Category: "residential"},
	{ID: "2", Name: "Nettoyage Maison", BasePrice: decimal.NewFromInt(100), Duration: 240, Category: "residential"},
	{ID: "3", Name: "Nettoyage Bureau", BasePrice: decimal.NewFromInt(75), Duration: 180, Category: "commercial"},
	{ID: "4", Name: "Nettoyage Fenêtres", BasePrice: decimal.NewFromInt(30), Duration: 60, Category: "speciality"},
}

// Products returns a copy of the product list.
func Products() []Product {
	return append([]Product(nil), products...)
}

// Services returns a copy of the service list.
func Services() []Service {
	return append([]Service(nil), services...)
}

func ProductByID(id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func ServiceByID(id string) (Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

package dto

import "time"

type Stats struct {
	TotalUsers    int    `json:"totalUsers"`
	TotalOrders   int    `json:"totalOrders"`
	TotalBookings int    `json:"totalBookings"`
	Revenue       string `json:"revenue"`
}

type Promotion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type FeaturedProduct struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type NewsletterRequest struct {
	Promotions  []Promotion       `json:"promotions"`
	NewProducts []FeaturedProduct `json:"newProducts"`
}

type EcoReportRequest struct {
	MonthYear string `json:"monthYear"`
}

type TestEmailRequest struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

// CampaignJob acknowledges a campaign accepted for background delivery.
type CampaignJob struct {
	Campaign  string    `json:"campaign"`
	StartedAt time.Time `json:"startedAt"`
}

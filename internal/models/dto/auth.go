package dto

import "github.com/hongminglow/ekonzims-be/internal/models"

type RegisterRequest struct {
	Email                  string   `json:"email"`
	Password               string   `json:"password"`
	FirstName              string   `json:"firstName"`
	LastName               string   `json:"lastName"`
	Phone                  string   `json:"phone"`
	Street                 string   `json:"street"`
	City                   string   `json:"city"`
	PostalCode             string   `json:"postalCode"`
	Latitude               *float64 `json:"latitude"`
	Longitude              *float64 `json:"longitude"`
	TermsAccepted          bool     `json:"termsAccepted"`
	PrivacyAccepted        bool     `json:"privacyAccepted"`
	MarketingConsent       bool     `json:"marketingConsent"`
	GeolocalizationConsent bool     `json:"geolocalizationConsent"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string          `json:"token"`
	User  models.UserView `json:"user"`
}

type UserResponse struct {
	User models.UserView `json:"user"`
}

type CheckEmailResponse struct {
	Exists bool `json:"exists"`
}

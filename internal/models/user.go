package models

import (
	"strings"
	"time"
)

// Address is a postal address attached to users, orders and bookings.
type Address struct {
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postalCode" bson:"postal_code"`
}

// GeoPoint is an optional geolocation captured at registration.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Consent records the legal acceptances given at registration.
type Consent struct {
	TermsAccepted          bool       `json:"termsAccepted" bson:"terms_accepted"`
	TermsAcceptedAt        *time.Time `json:"termsAcceptedAt,omitempty" bson:"terms_accepted_at,omitempty"`
	PrivacyAccepted        bool       `json:"privacyAccepted" bson:"privacy_accepted"`
	PrivacyAcceptedAt      *time.Time `json:"privacyAcceptedAt,omitempty" bson:"privacy_accepted_at,omitempty"`
	MarketingConsent       bool       `json:"marketingConsent" bson:"marketing_consent"`
	GeolocalizationConsent bool       `json:"geolocalizationConsent" bson:"geolocalization_consent"`
}

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	FirstName    string    `json:"-" bson:"first_name"`
	LastName     string    `json:"-" bson:"last_name"`
	Phone        string    `json:"phone" bson:"phone"`
	Address      Address   `json:"address" bson:"address"`
	Location     *GeoPoint `json:"location,omitempty" bson:"location,omitempty"`
	Role         Role      `json:"role" bson:"role"`

	EmailVerified              bool       `json:"emailVerified" bson:"email_verified"`
	EmailVerificationToken     *string    `json:"-" bson:"email_verification_token"`
	EmailVerificationExpiresAt *time.Time `json:"-" bson:"email_verification_expires_at"`
	PasswordResetToken         *string    `json:"-" bson:"password_reset_token"`
	PasswordResetExpiresAt     *time.Time `json:"-" bson:"password_reset_expires_at"`

	Consent   Consent   `json:"consent" bson:"consent"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserView is the privacy-filtered representation returned by the API.
type UserView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName,omitempty"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       Address   `json:"address"`
	Location      *GeoPoint `json:"location,omitempty"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	Consent       Consent   `json:"consent"`
	CreatedAt     time.Time `json:"createdAt"`
}

// View builds the API representation. Full names are only included when allowFullName is set;
// otherwise a "First L." display name is emitted.
func (u User) View(allowFullName bool) UserView {
	v := UserView{
		ID:            u.ID,
		Email:         u.Email,
		Phone:         u.Phone,
		Address:       u.Address,
		Location:      u.Location,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		Consent:       u.Consent,
		CreatedAt:     u.CreatedAt,
	}
	if allowFullName {
		v.FirstName = u.FirstName
		v.LastName = u.LastName
		return v
	}
	v.DisplayName = u.DisplayName()
	return v
}

// DisplayName returns "First L.", the first name alone, or "Client".
func (u User) DisplayName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + string([]rune(last)[:1]) + "."
	case first != "":
		return first
	default:
		return "Client"
	}
}

// Views maps a slice of users to their API representation.
func Views(users []User, allowFullName bool) []UserView {
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View(allowFullName))
	}
	return out
}

package fxclient

import (
	"time"

	"github.com/fxtrail/fxclient/session"
)

// TokenPair is the credential pair issued by login, registration, and
// refresh. ExpiresIn is the backend's advisory lifetime string; the client
// never schedules on it; 401 is the authority on expiry.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn,omitempty"`
}

// AuthResult is returned by [Client.Login] and [Client.Register] after the
// session transition has been applied and persisted.
type AuthResult struct {
	User   session.User
	Tokens TokenPair
}

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the POST /auth/register payload.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Profile is the account profile served by GET /auth/profile.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ProfileUpdate carries the fields to change on PUT /auth/profile. Empty
// fields are omitted from the payload and left untouched by the backend.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty"`
}

// ChangePasswordRequest is the POST /auth/change-password payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// ConversionRequest is the POST /conversions payload.
type ConversionRequest struct {
	FromCurrency string  `json:"fromCurrency" validate:"required,len=3"`
	ToCurrency   string  `json:"toCurrency" validate:"required,len=3"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

// Conversion is one stored conversion record.
type Conversion struct {
	ID              string    `json:"_id"`
	UserID          string    `json:"userId"`
	FromCurrency    string    `json:"fromCurrency"`
	ToCurrency      string    `json:"toCurrency"`
	Amount          float64   `json:"amount"`
	Rate            float64   `json:"rate"`
	ConvertedAmount float64   `json:"convertedAmount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ExchangeRate is the quote served by GET /rates/{from}/{to}.
type ExchangeRate struct {
	FromCurrency string    `json:"fromCurrency"`
	ToCurrency   string    `json:"toCurrency"`
	Rate         float64   `json:"rate"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConversionSummary is the aggregate served by GET /conversions/summary.
type ConversionSummary struct {
	TotalConversions     int       `json:"totalConversions"`
	FirstConversion      time.Time `json:"firstConversion"`
	LastConversion       time.Time `json:"lastConversion"`
	TotalAmountConverted float64   `json:"totalAmountConverted"`
	UniqueCurrencyPairs  int       `json:"uniqueCurrencyPairs"`
	AvgConversionAmount  float64   `json:"avgConversionAmount"`
}

// Page mirrors the pagination block of list responses.
type Page struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// ConversionListParams filters GET /conversions. Zero fields fall back to
// the backend defaults: page 1, limit 10, newest first.
type ConversionListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// ConversionList is a page of conversions.
type ConversionList struct {
	Items []Conversion
	Page  Page
}

// Event is one audit-trail entry.
type Event struct {
	ID        string         `json:"_id"`
	UserID    string         `json:"userId"`
	EventType string         `json:"eventType"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventListParams filters GET /events. Zero fields fall back to page 1,
// limit 20. EventType "All Events" (or "") means unfiltered. Dates are
// YYYY-MM-DD strings, passed through untouched.
type EventListParams struct {
	Page      int
	Limit     int
	EventType string
	StartDate string
	EndDate   string
}

// EventList is a page of audit events.
type EventList struct {
	Items []Event
	Page  Page
}

// EventStat is one row of GET /events/stats.
type EventStat struct {
	EventType      string    `json:"_id"`
	Count          int       `json:"count"`
	LastOccurrence time.Time `json:"lastOccurrence"`
}

// EventTypeAll is the sentinel the dashboard uses for "no filter".
const EventTypeAll = "All Events"

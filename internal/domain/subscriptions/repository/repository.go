// Package repository provides persistence for subscriptions and user preferences.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoData is returned by LoadAll when nothing has been persisted yet.
var ErrNoData = errors.New("no subscriptions persisted")

// Status represents the status of a subscription
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusExpired:
		return true
	}
	return false
}

// Category is the closed set of subscription categories
type Category string

const (
	CategoryStreaming    Category = "Streaming"
	CategoryMusic        Category = "Music"
	CategoryProductivity Category = "Productivity"
	CategoryGames        Category = "Games"
	CategoryEducation    Category = "Education"
	CategoryHealth       Category = "Health"
	CategoryOther        Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryStreaming,
	CategoryMusic,
	CategoryProductivity,
	CategoryGames,
	CategoryEducation,
	CategoryHealth,
	CategoryOther,
}

// categoryAliases maps lowercase names, including the Portuguese labels older
// blobs were written with, to categories.
var categoryAliases = map[string]Category{
	"streaming":     CategoryStreaming,
	"music":         CategoryMusic,
	"música":        CategoryMusic,
	"musica":        CategoryMusic,
	"productivity":  CategoryProductivity,
	"produtividade": CategoryProductivity,
	"games":         CategoryGames,
	"jogos":         CategoryGames,
	"education":     CategoryEducation,
	"educação":      CategoryEducation,
	"educacao":      CategoryEducation,
	"health":        CategoryHealth,
	"saúde":         CategoryHealth,
	"saude":         CategoryHealth,
	"other":         CategoryOther,
	"outros":        CategoryOther,
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// UnmarshalText accepts any alias ParseCategory knows. Unknown values map to Other
// so a single bad record never makes a whole blob unreadable.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		*c = CategoryOther
		return nil
	}
	*c = parsed
	return nil
}

// PaymentStatus is the state of a recorded payment. Only completed exists today.
type PaymentStatus string

const PaymentStatusCompleted PaymentStatus = "completed"

// Payment is one entry of a subscription's payment history
type Payment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   Date            `json:"date"`
	Status PaymentStatus   `json:"status"`
}

// ReminderHandle pairs a reminder offset in days with the facility handle.
type ReminderHandle struct {
	Offset int    `json:"offset"`
	Handle string `json:"handle"`
}

// Subscription represents a tracked recurring payment. Price is per month.
type Subscription struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	Category        Category         `json:"category"`
	NextPayment     Date             `json:"nextPayment"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	PaymentHistory  []Payment        `json:"paymentHistory"`
	ReminderHandles []ReminderHandle `json:"reminderHandles"`
}

// IsActive reports whether the subscription counts toward totals.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// Clone returns a deep copy so callers never alias store state.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.PaymentHistory = append([]Payment(nil), s.PaymentHistory...)
	c.ReminderHandles = append([]ReminderHandle(nil), s.ReminderHandles...)
	return &c
}

// Preferences are the user's app settings
type Preferences struct {
	Notifications bool `json:"notifications"`
	ReminderDays  int  `json:"reminderDays"`
	DarkMode      bool `json:"darkMode"`
	BiometricAuth bool `json:"biometricAuth"`
}

// DefaultPreferences returns the settings used before the user changes anything.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Notifications: true,
		ReminderDays:  3,
		DarkMode:      false,
		BiometricAuth: false,
	}
}

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	// LoadAll returns the persisted collection, or ErrNoData if none exists
	LoadAll(ctx context.Context) ([]*Subscription, error)
	// SaveAll replaces the persisted collection
	SaveAll(ctx context.Context, subs []*Subscription) error
	// Clear erases the persisted collection
	Clear(ctx context.Context) error

	LoadPreferences(ctx context.Context) (*Preferences, error)
	SavePreferences(ctx context.Context, prefs *Preferences) error
}

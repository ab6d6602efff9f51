package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemoSubscriptions returns the dataset a fresh install starts with.
func DemoSubscriptions() []*Subscription {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	demo := func(id, name, price string, category Category, next Date, status Status) *Subscription {
		return &Subscription{
			ID:              id,
			Name:            name,
			Price:           decimal.RequireFromString(price),
			Category:        category,
			NextPayment:     next,
			Status:          status,
			CreatedAt:       created,
			UpdatedAt:       created,
			PaymentHistory:  []Payment{},
			ReminderHandles: []ReminderHandle{},
		}
	}

	return []*Subscription{
		demo("1", "Netflix", "45.90", CategoryStreaming, NewDate(2024, time.February, 15), StatusActive),
		demo("2", "Spotify", "21.90", CategoryMusic, NewDate(2024, time.February, 10), StatusActive),
		demo("3", "Adobe Creative Cloud", "89.90", CategoryProductivity, NewDate(2024, time.February, 20), StatusActive),
		demo("4", "Amazon Prime", "14.90", CategoryStreaming, NewDate(2024, time.February, 25), StatusPaused),
		demo("5", "Disney+", "33.90", CategoryStreaming, NewDate(2024, time.February, 12), StatusActive),
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FACorreiaa/subscription-radar/pkg/storage"
)

// Blob keys. They match the keys the mobile app wrote, so existing data loads as is.
const (
	SubscriptionsKey = "@radar_subscriptions"
	PreferencesKey   = "@user_preferences"
)

// BlobSubscriptionRepository implements SubscriptionRepository as JSON blobs in a
// storage.BlobStore
type BlobSubscriptionRepository struct {
	store storage.BlobStore
}

// NewBlobSubscriptionRepository creates a new blob backed subscription repository
func NewBlobSubscriptionRepository(store storage.BlobStore) *BlobSubscriptionRepository {
	return &BlobSubscriptionRepository{store: store}
}

// LoadAll reads and decodes the subscriptions blob
func (r *BlobSubscriptionRepository) LoadAll(ctx context.Context) ([]*Subscription, error) {
	blob, err := r.store.Get(ctx, SubscriptionsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}

	var subs []*Subscription
	if err := json.Unmarshal(blob, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
	}

	// Drop null entries a hand-edited blob might contain
	out := subs[:0]
	for _, s := range subs {
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// SaveAll encodes subs as a JSON array and writes it
func (r *BlobSubscriptionRepository) SaveAll(ctx context.Context, subs []*Subscription) error {
	if subs == nil {
		subs = []*Subscription{}
	}
	blob, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("failed to encode subscriptions: %w", err)
	}
	if err := r.store.Set(ctx, SubscriptionsKey, blob); err != nil {
		return fmt.Errorf("failed to write subscriptions: %w", err)
	}
	return nil
}

// Clear removes the subscriptions blob
func (r *BlobSubscriptionRepository) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, SubscriptionsKey); err != nil {
		return fmt.Errorf("failed to clear subscriptions: %w", err)
	}
	return nil
}

// LoadPreferences returns stored preferences merged over the defaults
func (r *BlobSubscriptionRepository) LoadPreferences(ctx context.Context) (*Preferences, error) {
	prefs := DefaultPreferences()

	blob, err := r.store.Get(ctx, PreferencesKey)
	if errors.Is(err, storage.ErrNotFound) {
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	if err := json.Unmarshal(blob, prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences writes prefs
func (r *BlobSubscriptionRepository) SavePreferences(ctx context.Context, prefs *Preferences) error {
	blob, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := r.store.Set(ctx, PreferencesKey, blob); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

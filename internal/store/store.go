package store

import (
	"context"
	"errors"

	"github.com/storyforge-cloud/email-capture-service/internal/domain"
)

// ErrDuplicateEmail is returned by Create when a subscriber with the same
// email already exists. The unique constraint on the email column is the
// single arbiter — a lost insert race surfaces as this error, identical to a
// pre-checked duplicate.
var ErrDuplicateEmail = errors.New("email already exists")

// SubscriberStore is the persistence boundary shared by the subscribe API and
// the legacy backfill job. PostgresStore implements it in production;
// MemoryStore implements it for tests.
type SubscriberStore interface {
	// FindByEmail returns the subscriber with exactly this email, or nil if
	// none exists.
	FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// Create inserts a new active subscriber. Returns ErrDuplicateEmail when
	// the email is already taken.
	Create(ctx context.Context, sub domain.NewSubscriber) (*domain.Subscriber, error)

	// Reactivate flips an existing subscriber back to active and refreshes
	// subscribed_at. Returns nil if no subscriber with this email exists.
	Reactivate(ctx context.Context, email string) (*domain.Subscriber, error)

	// Count returns the total number of subscriber records.
	Count(ctx context.Context) (int, error)

	// Stats returns aggregate subscriber counts for the ops dashboard.
	Stats(ctx context.Context) (*SubscriberStats, error)
}

// SubscriberStats holds aggregated subscriber counts.
type SubscriberStats struct {
	Total        int `json:"total_subscribers"`
	Active       int `json:"active_subscribers"`
	Unsubscribed int `json:"unsubscribed_subscribers"`
	Migrated     int `json:"migrated_subscribers"`
}

package domain

import (
	"time"
)

// Subscriber statuses. The capture API only ever moves a record into
// StatusActive; StatusUnsubscribed is written by the unsubscribe flow in the
// main app.
const (
	StatusActive       = "active"
	StatusUnsubscribed = "unsubscribed"
)

// Subscriber is one captured email address and its subscription state.
type Subscriber struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Status         string         `json:"status"`
	SubscribedAt   time.Time      `json:"subscribed_at"`
	IPAddress      *string        `json:"ip_address,omitempty"`
	UserAgent      *string        `json:"user_agent,omitempty"`
	ReferralSource *string        `json:"referral_source,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewSubscriber carries the fields for creating a subscriber. A zero
// SubscribedAt means "now" — the store fills it in at insert time.
type NewSubscriber struct {
	Email          string
	SubscribedAt   time.Time
	IPAddress      *string
	UserAgent      *string
	ReferralSource *string
	Metadata       map[string]any
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storyforge-cloud/email-capture-service/internal/domain"
)

// MemoryStore is an in-memory SubscriberStore keyed by email. It backs the
// handler and migration tests so they run without Postgres.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscriber
}

func NewMemory() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*domain.Subscriber)}
}

func (s *MemoryStore) Create(_ context.Context, sub domain.NewSubscriber) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.Email]; exists {
		return nil, ErrDuplicateEmail
	}

	now := time.Now().UTC()
	subscribedAt := sub.SubscribedAt
	if subscribedAt.IsZero() {
		subscribedAt = now
	}

	created := &domain.Subscriber{
		ID:             uuid.NewString(),
		Email:          sub.Email,
		Status:         domain.StatusActive,
		SubscribedAt:   subscribedAt,
		IPAddress:      sub.IPAddress,
		UserAgent:      sub.UserAgent,
		ReferralSource: sub.ReferralSource,
		Metadata:       sub.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.subs[sub.Email] = created

	out := *created
	return &out, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[email]
	if !ok {
		return nil, nil
	}
	out := *sub
	return &out, nil
}

func (s *MemoryStore) Reactivate(_ context.Context, email string) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[email]
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	sub.Status = domain.StatusActive
	sub.SubscribedAt = now
	sub.UpdatedAt = now

	out := *sub
	return &out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs), nil
}

func (s *MemoryStore) Stats(_ context.Context) (*SubscriberStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &SubscriberStats{Total: len(s.subs)}
	for _, sub := range s.subs {
		switch sub.Status {
		case domain.StatusActive:
			st.Active++
		case domain.StatusUnsubscribed:
			st.Unsubscribed++
		}
		if _, ok := sub.Metadata["migratedFrom"]; ok {
			st.Migrated++
		}
	}
	return st, nil
}

// SetStatus overwrites a subscriber's status. Test helper standing in for the
// external unsubscribe flow.
func (s *MemoryStore) SetStatus(email, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[email]; ok {
		sub.Status = status
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/storyforge-cloud/email-capture-service/internal/domain"
)

const subscriberColumns = `id, email, status, subscribed_at, ip_address, user_agent, referral_source, metadata, created_at, updated_at`

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, sub domain.NewSubscriber) (*domain.Subscriber, error) {
	subscribedAt := sub.SubscribedAt
	if subscribedAt.IsZero() {
		subscribedAt = time.Now().UTC()
	}

	var created domain.Subscriber
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscribers (email, status, subscribed_at, ip_address, user_agent, referral_source, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+subscriberColumns+`
	`, sub.Email, domain.StatusActive, subscribedAt,
		sub.IPAddress, sub.UserAgent, sub.ReferralSource, sub.Metadata,
	).Scan(scanTargets(&created)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting subscriber: %w", err)
	}

	return &created, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	err := s.pool.QueryRow(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers WHERE email = $1
	`, email).Scan(scanTargets(&sub)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscriber: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) Reactivate(ctx context.Context, email string) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	err := s.pool.QueryRow(ctx, `
		UPDATE subscribers
		SET status = $2, subscribed_at = NOW(), updated_at = NOW()
		WHERE email = $1
		RETURNING `+subscriberColumns+`
	`, email, domain.StatusActive).Scan(scanTargets(&sub)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reactivating subscriber: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting subscribers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*SubscriberStats, error) {
	var st SubscriberStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active,
			COUNT(*) FILTER (WHERE status = 'unsubscribed') AS unsubscribed,
			COUNT(*) FILTER (WHERE metadata ? 'migratedFrom') AS migrated
		FROM subscribers
	`).Scan(&st.Total, &st.Active, &st.Unsubscribed, &st.Migrated)
	if err != nil {
		return nil, fmt.Errorf("querying subscriber stats: %w", err)
	}
	return &st, nil
}

func scanTargets(sub *domain.Subscriber) []any {
	return []any{
		&sub.ID, &sub.Email, &sub.Status, &sub.SubscribedAt,
		&sub.IPAddress, &sub.UserAgent, &sub.ReferralSource, &sub.Metadata,
		&sub.CreatedAt, &sub.UpdatedAt,
	}
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/storage"
)

// SubscriberRegistry implements storage.SubscriberRegistry using PostgreSQL.
type SubscriberRegistry struct {
	pool *Pool
}

// NewSubscriberRegistry creates a new SubscriberRegistry.
func NewSubscriberRegistry(pool *Pool) *SubscriberRegistry {
	return &SubscriberRegistry{pool: pool}
}

// Compile-time interface check.
var _ storage.SubscriberRegistry = (*SubscriberRegistry)(nil)

const subscriberColumns = `user_id, chat_id, wallet_address, alerts_opt_in, created_at, updated_at`

// Get retrieves a subscriber by user ID. Returns ErrNotFound if not exists.
func (r *SubscriberRegistry) Get(ctx context.Context, userID int64) (_ *domain.Subscriber, err error) {
	defer observe("get_subscriber", time.Now(), &err)

	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE user_id = $1`

	s, err := scanSubscriber(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

// Upsert inserts or updates a subscriber in a single statement.
// NULL parameters keep the stored column value.
func (r *SubscriberRegistry) Upsert(ctx context.Context, u domain.SubscriberUpdate) (_ *domain.Subscriber, err error) {
	if u.UserID == 0 {
		return nil, storage.ErrInvalidInput
	}

	defer observe("upsert_subscriber", time.Now(), &err)

	query := `
		INSERT INTO subscribers (
			user_id, chat_id, wallet_address, alerts_opt_in, created_at, updated_at
		) VALUES ($1, $2, $3::text, COALESCE($4::boolean, $5), $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id        = EXCLUDED.chat_id,
			wallet_address = COALESCE($3::text, subscribers.wallet_address),
			alerts_opt_in  = COALESCE($4::boolean, subscribers.alerts_opt_in),
			updated_at     = EXCLUDED.updated_at
		RETURNING ` + subscriberColumns

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, query,
		u.UserID,
		u.ChatID,
		u.WalletAddress,
		u.AlertsOptIn,
		domain.DefaultAlertsOptIn,
		now,
	)

	s, err := scanSubscriber(row)
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", err)
	}
	return s, nil
}

// ListAlertRecipients returns opted-in subscribers with a wallet, ordered by user_id.
func (r *SubscriberRegistry) ListAlertRecipients(ctx context.Context) (_ []*domain.Subscriber, err error) {
	defer observe("list_recipients", time.Now(), &err)

	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE alerts_opt_in AND wallet_address IS NOT NULL AND wallet_address <> ''
		ORDER BY user_id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alert recipients: %w", err)
	}
	defer rows.Close()

	var result []*domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return result, nil
}

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var s domain.Subscriber
	err := row.Scan(
		&s.UserID,
		&s.ChatID,
		&s.WalletAddress,
		&s.AlertsOptIn,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

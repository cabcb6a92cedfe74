package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/storage"
)

// SubscriberRegistry implements storage.SubscriberRegistry using SQLite.
// Timestamps are stored as unix milliseconds.
type SubscriberRegistry struct {
	db  *DB
	now func() time.Time
}

// NewSubscriberRegistry creates a new SubscriberRegistry.
func NewSubscriberRegistry(db *DB) *SubscriberRegistry {
	return &SubscriberRegistry{db: db, now: time.Now}
}

var _ storage.SubscriberRegistry = (*SubscriberRegistry)(nil)

const subscriberColumns = `user_id, chat_id, wallet_address, alerts_opt_in, created_at, updated_at`

// Get retrieves a subscriber by user ID. Returns ErrNotFound if not exists.
func (r *SubscriberRegistry) Get(ctx context.Context, userID int64) (_ *domain.Subscriber, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("sqlite", "get_subscriber", time.Since(start).Seconds(), err) }()

	row := r.db.QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = ?1`, userID)
	s, err := scanSubscriber(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

// Upsert inserts or updates a subscriber. NULL parameters keep stored values.
func (r *SubscriberRegistry) Upsert(ctx context.Context, u domain.SubscriberUpdate) (_ *domain.Subscriber, err error) {
	if u.UserID == 0 {
		return nil, storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observability.RecordDBQuery("sqlite", "upsert_subscriber", time.Since(start).Seconds(), err) }()

	query := `
		INSERT INTO subscribers (
			user_id, chat_id, wallet_address, alerts_opt_in, created_at, updated_at
		) VALUES (?1, ?2, ?3, COALESCE(?4, ?5), ?6, ?6)
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id        = excluded.chat_id,
			wallet_address = COALESCE(?3, subscribers.wallet_address),
			alerts_opt_in  = COALESCE(?4, subscribers.alerts_opt_in),
			updated_at     = excluded.updated_at
		RETURNING ` + subscriberColumns

	var wallet sql.NullString
	if u.WalletAddress != nil {
		wallet = sql.NullString{String: *u.WalletAddress, Valid: true}
	}
	var optIn sql.NullBool
	if u.AlertsOptIn != nil {
		optIn = sql.NullBool{Bool: *u.AlertsOptIn, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query,
		u.UserID,
		u.ChatID,
		wallet,
		optIn,
		domain.DefaultAlertsOptIn,
		r.now().UnixMilli(),
	)
	s, err := scanSubscriber(row)
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", err)
	}
	return s, nil
}

// ListAlertRecipients returns opted-in subscribers with a wallet, ordered by user_id.
func (r *SubscriberRegistry) ListAlertRecipients(ctx context.Context) (_ []*domain.Subscriber, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("sqlite", "list_recipients", time.Since(start).Seconds(), err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE alerts_opt_in = 1 AND wallet_address IS NOT NULL AND wallet_address <> ''
		ORDER BY user_id ASC
	`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row scanner) (*domain.Subscriber, error) {
	var (
		s                  domain.Subscriber
		wallet             sql.NullString
		createdMs, updated int64
	)
	if err := row.Scan(&s.UserID, &s.ChatID, &wallet, &s.AlertsOptIn, &createdMs, &updated); err != nil {
		return nil, err
	}
	if wallet.Valid {
		w := wallet.String
		s.WalletAddress = &w
	}
	s.CreatedAt = time.UnixMilli(createdMs).UTC()
	s.UpdatedAt = time.UnixMilli(updated).UTC()
	return &s, nil
}

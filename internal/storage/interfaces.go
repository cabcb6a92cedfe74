package storage

import (
	"context"

	"edgeai-booster/internal/domain"
)

// SubscriberRegistry is the durable user -> (wallet, opt-in) store.
// Records are never deleted.
type SubscriberRegistry interface {
	// Get returns the subscriber or ErrNotFound.
	Get(ctx context.Context, userID int64) (*domain.Subscriber, error)

	// Upsert creates the record on first interaction or updates it.
	// Nil fields in the update keep their stored values; a new record
	// without AlertsOptIn gets domain.DefaultAlertsOptIn.
	Upsert(ctx context.Context, u domain.SubscriberUpdate) (*domain.Subscriber, error)

	// ListAlertRecipients returns subscribers opted in with a non-empty wallet,
	// ordered by user id.
	ListAlertRecipients(ctx context.Context) ([]*domain.Subscriber, error)
}

// DeliveryLog records broadcaster runs and their per-recipient deliveries.
type DeliveryLog interface {
	// RecordRun stores the run summary and its deliveries.
	RecordRun(ctx context.Context, run *domain.BroadcastRun) error

	// RecentRuns returns the latest run summaries, newest first, without deliveries.
	RecentRuns(ctx context.Context, limit int) ([]*domain.BroadcastRun, error)
}

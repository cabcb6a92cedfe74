package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func TestSubscriberRegistry_UpsertCreatesWithDefaults(t *testing.T) {
	r := NewSubscriberRegistry()
	ctx := context.Background()

	s, err := r.Upsert(ctx, domain.SubscriberUpdate{UserID: 1, ChatID: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.UserID)
	assert.Equal(t, int64(100), s.ChatID)
	assert.Nil(t, s.WalletAddress)
	assert.True(t, s.AlertsOptIn)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
}

func TestSubscriberRegistry_UpsertKeepsUnsetFields(t *testing.T) {
	r := NewSubscriberRegistry()
	ctx := context.Background()

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return t0 }
	_, err := r.Upsert(ctx, domain.SubscriberUpdate{UserID: 1, ChatID: 100, WalletAddress: ptr("wallet-a")})
	require.NoError(t, err)

	r.now = func() time.Time { return t0.Add(time.Hour) }
	s, err := r.Upsert(ctx, domain.SubscriberUpdate{UserID: 1, ChatID: 100, AlertsOptIn: ptr(false)})
	require.NoError(t, err)

	require.NotNil(t, s.WalletAddress)
	assert.Equal(t, "wallet-a", *s.WalletAddress)
	assert.False(t, s.AlertsOptIn)
	assert.Equal(t, t0, s.CreatedAt)
	assert.Equal(t, t0.Add(time.Hour), s.UpdatedAt)
}

func TestSubscriberRegistry_Get(t *testing.T) {
	r := NewSubscriberRegistry()
	ctx := context.Background()

	_, err := r.Get(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = r.Upsert(ctx, domain.SubscriberUpdate{UserID: 42, ChatID: 7, WalletAddress: ptr("w")})
	require.NoError(t, err)

	s, err := r.Get(ctx, 42)
	require.NoError(t, err)

	// Returned records are copies.
	*s.WalletAddress = "mutated"
	again, err := r.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "w", *again.WalletAddress)
}

func TestSubscriberRegistry_InvalidInput(t *testing.T) {
	r := NewSubscriberRegistry()
	_, err := r.Upsert(context.Background(), domain.SubscriberUpdate{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSubscriberRegistry_ListAlertRecipients(t *testing.T) {
	r := NewSubscriberRegistry()
	ctx := context.Background()

	updates := []domain.SubscriberUpdate{
		{UserID: 3, ChatID: 30, WalletAddress: ptr("w3")},                        // eligible
		{UserID: 1, ChatID: 10, WalletAddress: ptr("w1")},                        // eligible
		{UserID: 2, ChatID: 20},                                                  // no wallet
		{UserID: 4, ChatID: 40, WalletAddress: ptr("w4"), AlertsOptIn: ptr(false)}, // opted out
		{UserID: 5, ChatID: 50, WalletAddress: ptr("")},                          // empty wallet
	}
	for _, u := range updates {
		_, err := r.Upsert(ctx, u)
		require.NoError(t, err)
	}

	got, err := r.ListAlertRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].UserID)
	assert.Equal(t, int64(3), got[1].UserID)
}

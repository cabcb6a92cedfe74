package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/storage"
)

// SubscriberRegistry is an in-memory implementation of storage.SubscriberRegistry.
type SubscriberRegistry struct {
	mu    sync.RWMutex
	users map[int64]*domain.Subscriber
	now   func() time.Time
}

// NewSubscriberRegistry creates a new in-memory subscriber registry.
func NewSubscriberRegistry() *SubscriberRegistry {
	return &SubscriberRegistry{
		users: make(map[int64]*domain.Subscriber),
		now:   time.Now,
	}
}

var _ storage.SubscriberRegistry = (*SubscriberRegistry)(nil)

// Get returns a copy of the subscriber.
func (r *SubscriberRegistry) Get(_ context.Context, userID int64) (*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copySubscriber(s), nil
}

// Upsert creates or updates a subscriber.
func (r *SubscriberRegistry) Upsert(_ context.Context, u domain.SubscriberUpdate) (*domain.Subscriber, error) {
	if u.UserID == 0 {
		return nil, storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	s, ok := r.users[u.UserID]
	if !ok {
		s = &domain.Subscriber{
			UserID:      u.UserID,
			AlertsOptIn: domain.DefaultAlertsOptIn,
			CreatedAt:   now,
		}
		r.users[u.UserID] = s
	}

	s.ChatID = u.ChatID
	if u.WalletAddress != nil {
		w := *u.WalletAddress
		s.WalletAddress = &w
	}
	if u.AlertsOptIn != nil {
		s.AlertsOptIn = *u.AlertsOptIn
	}
	s.UpdatedAt = now

	return copySubscriber(s), nil
}

// ListAlertRecipients returns opted-in subscribers with a wallet.
func (r *SubscriberRegistry) ListAlertRecipients(_ context.Context) ([]*domain.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Subscriber
	for _, s := range r.users {
		if s.AlertsOptIn && s.HasWallet() {
			out = append(out, copySubscriber(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func copySubscriber(s *domain.Subscriber) *domain.Subscriber {
	c := *s
	if s.WalletAddress != nil {
		w := *s.WalletAddress
		c.WalletAddress = &w
	}
	return &c
}

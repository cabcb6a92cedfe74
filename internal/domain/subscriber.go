package domain

import "time"

// Subscriber is a chat user known to the registry.
// Corresponds to subscribers table.
type Subscriber struct {
	UserID        int64   // PK, chat platform user id
	ChatID        int64   // where pushes are delivered
	WalletAddress *string // base58, nullable until connected
	AlertsOptIn   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasWallet reports whether a wallet has been connected.
func (s *Subscriber) HasWallet() bool {
	return s.WalletAddress != nil && *s.WalletAddress != ""
}

// SubscriberUpdate describes an upsert. Nil fields keep their stored value.
type SubscriberUpdate struct {
	UserID        int64
	ChatID        int64
	WalletAddress *string
	AlertsOptIn   *bool
}

// DefaultAlertsOptIn is applied to records created without an explicit flag.
const DefaultAlertsOptIn = true

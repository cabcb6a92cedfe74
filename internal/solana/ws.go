package solana

import "context"

// WSClient defines the Solana WebSocket subscription capability used to
// observe account changes.
type WSClient interface {
	// SubscribeAccount subscribes to changes of a single account.
	SubscribeAccount(ctx context.Context, pubkey string) (*AccountSubscription, error)

	// Unsubscribe drops a subscription and closes its channel.
	Unsubscribe(ctx context.Context, sub *AccountSubscription) error

	// Close closes the WebSocket connection.
	Close() error
}

// AccountSubscription is a live accountSubscribe handle.
// The ID is local and stays stable across reconnects.
type AccountSubscription struct {
	ID     uint64
	Pubkey string
	C      <-chan AccountNotification
}

// AccountNotification represents an accountNotification message.
type AccountNotification struct {
	Pubkey   string
	Slot     int64
	Lamports uint64
	Data     string // base64
}

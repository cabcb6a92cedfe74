package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/account"
	"edgeai-booster/internal/solana"
)

// AccountWatcher signals when a wallet's subscription account changes.
// stop releases the watch; the wake channel is closed afterwards.
type AccountWatcher interface {
	Watch(ctx context.Context, wallet string) (wake <-chan struct{}, stop func(), err error)
}

// WSAccountWatcher watches the subscription PDA over accountSubscribe.
type WSAccountWatcher struct {
	ws        solana.WSClient
	programID solana.PublicKey
	logger    zerolog.Logger
}

var _ AccountWatcher = (*WSAccountWatcher)(nil)

// NewWSAccountWatcher creates a watcher on top of a websocket client.
func NewWSAccountWatcher(ws solana.WSClient, programID solana.PublicKey, logger zerolog.Logger) *WSAccountWatcher {
	return &WSAccountWatcher{
		ws:        ws,
		programID: programID,
		logger:    logger.With().Str("component", "account_watcher").Logger(),
	}
}

// Watch subscribes to the subscription account of wallet.
func (w *WSAccountWatcher) Watch(ctx context.Context, wallet string) (<-chan struct{}, func(), error) {
	pk, err := solana.ParsePublicKey(wallet)
	if err != nil {
		return nil, nil, err
	}
	addr, _, err := account.SubscriptionAddress(pk, w.programID)
	if err != nil {
		return nil, nil, err
	}

	sub, err := w.ws.SubscribeAccount(ctx, addr.String())
	if err != nil {
		return nil, nil, fmt.Errorf("watch %s: %w", addr, err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		for n := range sub.C {
			w.logger.Debug().Str("account", n.Pubkey).Int64("slot", n.Slot).Msg("subscription account changed")
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := w.ws.Unsubscribe(context.Background(), sub); err != nil {
				w.logger.Debug().Err(err).Str("account", addr.String()).Msg("unsubscribe failed")
			}
		})
	}

	return wake, stop, nil
}

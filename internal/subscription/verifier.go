// Package subscription answers whether a wallet holds an active premium
// subscription and confirms freshly submitted payments.
package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/solana"
)

// RecordFetcher reads a wallet's subscription record from the ledger.
type RecordFetcher interface {
	FetchSubscription(ctx context.Context, wallet solana.PublicKey) (*domain.SubscriptionRecord, error)
}

// PremiumChecker is the gate used by commands, the poller and the broadcaster.
type PremiumChecker interface {
	IsPremium(ctx context.Context, wallet string) (bool, *time.Time)
}

// Verifier checks premium status against the ledger on every call.
type Verifier struct {
	fetcher RecordFetcher
	now     func() time.Time
	logger  zerolog.Logger
}

var _ PremiumChecker = (*Verifier)(nil)

// NewVerifier creates a verifier.
func NewVerifier(fetcher RecordFetcher, logger zerolog.Logger) *Verifier {
	return &Verifier{
		fetcher: fetcher,
		now:     time.Now,
		logger:  logger.With().Str("component", "verifier").Logger(),
	}
}

// IsPremium reports whether wallet has an unexpired subscription and, if so,
// when it expires. Any failure to prove premium yields (false, nil).
func (v *Verifier) IsPremium(ctx context.Context, wallet string) (bool, *time.Time) {
	pk, err := solana.ParsePublicKey(wallet)
	if err != nil {
		v.logger.Debug().Err(err).Str("wallet", wallet).Msg("invalid wallet")
		observability.RecordPremiumCheck("invalid")
		return false, nil
	}

	rec, err := v.fetcher.FetchSubscription(ctx, pk)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			observability.RecordPremiumCheck("free")
		default:
			v.logger.Warn().Err(err).Str("wallet", wallet).Msg("premium check failed")
			observability.RecordPremiumCheck("error")
		}
		return false, nil
	}

	if !rec.IsActive(v.now()) {
		observability.RecordPremiumCheck("expired")
		return false, nil
	}

	observability.RecordPremiumCheck("premium")
	expiry := rec.ExpiresAt()
	return true, &expiry
}

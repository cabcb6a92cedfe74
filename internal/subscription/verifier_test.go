package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/solana"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type stubFetcher struct {
	rec   *domain.SubscriptionRecord
	err   error
	calls int
}

func (f *stubFetcher) FetchSubscription(_ context.Context, _ solana.PublicKey) (*domain.SubscriptionRecord, error) {
	f.calls++
	return f.rec, f.err
}

func newTestVerifier(f RecordFetcher, now time.Time) *Verifier {
	v := NewVerifier(f, zerolog.Nop())
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier_IsPremium(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name        string
		fetcher     *stubFetcher
		wantPremium bool
	}{
		{
			name:        "active",
			fetcher:     &stubFetcher{rec: &domain.SubscriptionRecord{ExpiresAtUnix: now.Unix() + 3600}},
			wantPremium: true,
		},
		{
			name:    "expired",
			fetcher: &stubFetcher{rec: &domain.SubscriptionRecord{ExpiresAtUnix: now.Unix() - 1}},
		},
		{
			name:    "expires exactly now",
			fetcher: &stubFetcher{rec: &domain.SubscriptionRecord{ExpiresAtUnix: now.Unix()}},
		},
		{
			name:    "not found",
			fetcher: &stubFetcher{err: domain.ErrNotFound},
		},
		{
			name:    "transport error",
			fetcher: &stubFetcher{err: &domain.TransportError{Op: "getAccountInfo", Err: errors.New("timeout")}},
		},
		{
			name:    "malformed",
			fetcher: &stubFetcher{err: &domain.MalformedAccountError{Layout: "subscription", Want: 50, Got: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(tt.fetcher, now)

			premium, expiry := v.IsPremium(context.Background(), testWallet)
			assert.Equal(t, tt.wantPremium, premium)
			if tt.wantPremium {
				require.NotNil(t, expiry)
				assert.Equal(t, tt.fetcher.rec.ExpiresAtUnix, expiry.Unix())
			} else {
				assert.Nil(t, expiry)
			}
			assert.Equal(t, 1, tt.fetcher.calls, "every check reads the ledger")
		})
	}
}

func TestVerifier_InvalidWallet(t *testing.T) {
	f := &stubFetcher{}
	v := newTestVerifier(f, time.Now())

	premium, expiry := v.IsPremium(context.Background(), "not-a-wallet")
	assert.False(t, premium)
	assert.Nil(t, expiry)
	assert.Equal(t, 0, f.calls)
}

func TestVerifier_NoCaching(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &stubFetcher{rec: &domain.SubscriptionRecord{ExpiresAtUnix: now.Unix() + 10}}
	v := newTestVerifier(f, now)

	premium, _ := v.IsPremium(context.Background(), testWallet)
	assert.True(t, premium)

	f.rec = nil
	f.err = domain.ErrNotFound
	premium, _ = v.IsPremium(context.Background(), testWallet)
	assert.False(t, premium)
	assert.Equal(t, 2, f.calls)
}

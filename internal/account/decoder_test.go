package account

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/solana"
)

// fakeReader serves accounts from a map keyed by address.
type fakeReader struct {
	accounts map[string][]byte
	raw      map[string]string
	err      error
	calls    []string
}

func (f *fakeReader) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	f.calls = append(f.calls, pubkey)
	if f.err != nil {
		return nil, f.err
	}
	if raw, ok := f.raw[pubkey]; ok {
		return &solana.AccountInfo{Data: raw}, nil
	}
	data, ok := f.accounts[pubkey]
	if !ok {
		return nil, nil
	}
	return &solana.AccountInfo{Data: base64.StdEncoding.EncodeToString(data)}, nil
}

func TestDecoder_FetchSubscription(t *testing.T) {
	addr, _, err := SubscriptionAddress(testWallet, testProgramID)
	require.NoError(t, err)

	reader := &fakeReader{accounts: map[string][]byte{
		addr.String(): subscriptionBytes(testWallet, 2_000_000_000, 0, 251),
	}}
	d := NewDecoder(reader, testProgramID, zerolog.Nop())
	assert.Equal(t, testProgramID, d.ProgramID())

	rec, err := d.FetchSubscription(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000_000), rec.ExpiresAtUnix)
	assert.Equal(t, []string{addr.String()}, reader.calls)
}

func TestDecoder_FetchSubscription_NotFound(t *testing.T) {
	d := NewDecoder(&fakeReader{}, testProgramID, zerolog.Nop())

	_, err := d.FetchSubscription(context.Background(), testWallet)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, domain.IsTransport(err))
}

func TestDecoder_FetchSubscription_Transport(t *testing.T) {
	reader := &fakeReader{err: &domain.TransportError{Op: "getAccountInfo", Endpoint: "http://rpc", Err: errors.New("boom")}}
	d := NewDecoder(reader, testProgramID, zerolog.Nop())

	_, err := d.FetchSubscription(context.Background(), testWallet)
	assert.True(t, domain.IsTransport(err))
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestDecoder_FetchSubscription_Malformed(t *testing.T) {
	addr, _, err := SubscriptionAddress(testWallet, testProgramID)
	require.NoError(t, err)

	reader := &fakeReader{accounts: map[string][]byte{addr.String(): make([]byte, 20)}}
	d := NewDecoder(reader, testProgramID, zerolog.Nop())

	_, err = d.FetchSubscription(context.Background(), testWallet)
	assert.ErrorIs(t, err, domain.ErrMalformedAccount)
	assert.Len(t, reader.calls, 1)
}

func TestDecoder_FetchSubscription_BadBase64(t *testing.T) {
	addr, _, err := SubscriptionAddress(testWallet, testProgramID)
	require.NoError(t, err)

	reader := &fakeReader{raw: map[string]string{addr.String(): "!!not-base64!!"}}
	d := NewDecoder(reader, testProgramID, zerolog.Nop())

	_, err = d.FetchSubscription(context.Background(), testWallet)
	assert.True(t, domain.IsTransport(err))
}

func TestDecoder_FetchConfig(t *testing.T) {
	addr, _, err := ConfigAddress(testProgramID)
	require.NoError(t, err)

	reader := &fakeReader{accounts: map[string][]byte{
		addr.String(): configBytes(ConfigSize, 500_000_000, 50_000_000),
	}}
	d := NewDecoder(reader, testProgramID, zerolog.Nop())

	cfg, err := d.FetchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), cfg.SubscriptionPriceLamports)
	assert.Equal(t, uint64(50_000_000), cfg.SubscriptionPriceUsdcMicros)
}

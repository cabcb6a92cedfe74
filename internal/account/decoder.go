package account

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/solana"
)

// Decoder fetches program accounts over RPC and decodes them.
type Decoder struct {
	reader    solana.AccountReader
	programID solana.PublicKey
	logger    zerolog.Logger
}

// NewDecoder creates a decoder for accounts owned by programID.
func NewDecoder(reader solana.AccountReader, programID solana.PublicKey, logger zerolog.Logger) *Decoder {
	return &Decoder{
		reader:    reader,
		programID: programID,
		logger:    logger.With().Str("component", "account_decoder").Logger(),
	}
}

// ProgramID returns the program the decoder derives addresses for.
func (d *Decoder) ProgramID() solana.PublicKey {
	return d.programID
}

// FetchSubscription reads and decodes the subscription account of wallet.
// Returns domain.ErrNotFound when the account does not exist.
func (d *Decoder) FetchSubscription(ctx context.Context, wallet solana.PublicKey) (*domain.SubscriptionRecord, error) {
	addr, _, err := SubscriptionAddress(wallet, d.programID)
	if err != nil {
		return nil, err
	}

	data, err := d.fetch(ctx, addr.String(), LayoutSubscription)
	if err != nil {
		return nil, err
	}

	rec, err := DecodeSubscription(addr.String(), data)
	if err != nil {
		d.failed(LayoutSubscription, addr.String(), err)
		return nil, err
	}
	return rec, nil
}

// FetchConfig reads and decodes the singleton config account.
func (d *Decoder) FetchConfig(ctx context.Context) (*domain.ConfigRecord, error) {
	addr, _, err := ConfigAddress(d.programID)
	if err != nil {
		return nil, err
	}

	data, err := d.fetch(ctx, addr.String(), LayoutConfig)
	if err != nil {
		return nil, err
	}

	rec, err := DecodeConfig(addr.String(), data)
	if err != nil {
		d.failed(LayoutConfig, addr.String(), err)
		return nil, err
	}
	return rec, nil
}

// fetch performs the single getAccountInfo call and returns the raw bytes.
func (d *Decoder) fetch(ctx context.Context, address, layout string) ([]byte, error) {
	info, err := d.reader.GetAccountInfo(ctx, address)
	if err != nil {
		d.failed(layout, address, err)
		return nil, err
	}
	if info == nil {
		observability.RecordDecoderFailure(layout, "not_found")
		return nil, fmt.Errorf("%s account %s: %w", layout, address, domain.ErrNotFound)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		terr := &domain.TransportError{Op: "decode " + layout, Endpoint: address, Err: err}
		d.failed(layout, address, terr)
		return nil, terr
	}
	return data, nil
}

func (d *Decoder) failed(layout, address string, err error) {
	kind := "transport"
	var malformed *domain.MalformedAccountError
	if errors.As(err, &malformed) {
		kind = "malformed"
		d.logger.Error().
			Str("address", address).
			Str("layout", layout).
			Int("want", malformed.Want).
			Int("got", malformed.Got).
			Msg("account shorter than layout")
	} else {
		d.logger.Warn().Err(err).Str("address", address).Str("layout", layout).Msg("account fetch failed")
	}
	observability.RecordDecoderFailure(layout, kind)
}

package account

import (
	"encoding/binary"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/solana"
)

// Layout names used in errors and metrics.
const (
	LayoutSubscription = "subscription"
	LayoutConfig       = "config"
)

// Subscription account layout.
const (
	subOwnerOffset   = 8
	subExpiryOffset  = 40
	subPaymentOffset = 48
	subBumpOffset    = 49

	// SubscriptionSize is the minimum length of a subscription account.
	SubscriptionSize = 50
)

// Config account layout.
const (
	cfgAdminOffset     = 8
	cfgFeeWalletOffset = 40
	cfgMintOffset      = 72
	cfgSolPriceOffset  = 104
	cfgUsdcPriceOffset = 112
	cfgDurationOffset  = 120
	cfgFeeShareOffset  = 128
	cfgBumpOffset      = 130

	// ConfigSize is the minimum length of a config account.
	ConfigSize = 120
	// ConfigExtendedSize is the length carrying duration, fee share and bump.
	ConfigExtendedSize = 131
)

// DecodeSubscription decodes a subscription account. address is only used for errors.
func DecodeSubscription(address string, data []byte) (*domain.SubscriptionRecord, error) {
	if len(data) < SubscriptionSize {
		return nil, &domain.MalformedAccountError{
			Address: address,
			Layout:  LayoutSubscription,
			Want:    SubscriptionSize,
			Got:     len(data),
		}
	}

	return &domain.SubscriptionRecord{
		Owner:         pubkeyAt(data, subOwnerOffset),
		ExpiresAtUnix: int64(binary.LittleEndian.Uint64(data[subExpiryOffset:subPaymentOffset])),
		PaymentMethod: domain.PaymentMethodFromByte(data[subPaymentOffset]),
		Bump:          data[subBumpOffset],
	}, nil
}

// DecodeConfig decodes the config account. Optional trailing fields are
// populated only when the account is at least ConfigExtendedSize bytes.
func DecodeConfig(address string, data []byte) (*domain.ConfigRecord, error) {
	if len(data) < ConfigSize {
		return nil, &domain.MalformedAccountError{
			Address: address,
			Layout:  LayoutConfig,
			Want:    ConfigSize,
			Got:     len(data),
		}
	}

	rec := &domain.ConfigRecord{
		Admin:                       pubkeyAt(data, cfgAdminOffset),
		FeeWallet:                   pubkeyAt(data, cfgFeeWalletOffset),
		TokenMint:                   pubkeyAt(data, cfgMintOffset),
		SubscriptionPriceLamports:   binary.LittleEndian.Uint64(data[cfgSolPriceOffset:cfgUsdcPriceOffset]),
		SubscriptionPriceUsdcMicros: binary.LittleEndian.Uint64(data[cfgUsdcPriceOffset:cfgDurationOffset]),
	}

	if len(data) >= ConfigExtendedSize {
		duration := int64(binary.LittleEndian.Uint64(data[cfgDurationOffset:cfgFeeShareOffset]))
		feeShare := binary.LittleEndian.Uint16(data[cfgFeeShareOffset:cfgBumpOffset])
		bump := data[cfgBumpOffset]
		rec.SubscriptionDurationSeconds = &duration
		rec.StakingFeeShareBps = &feeShare
		rec.Bump = &bump
	}

	return rec, nil
}

func pubkeyAt(data []byte, offset int) string {
	var pk solana.PublicKey
	copy(pk[:], data[offset:offset+32])
	return pk.String()
}

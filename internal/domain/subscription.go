package domain

import "time"

// PaymentMethod is the on-chain enum recorded with a subscription.
type PaymentMethod string

const (
	PaymentMethodSOL     PaymentMethod = "SOL"
	PaymentMethodUSDC    PaymentMethod = "USDC"
	PaymentMethodUnknown PaymentMethod = "unknown"
)

// PaymentMethodFromByte maps the program's enum discriminant.
func PaymentMethodFromByte(b byte) PaymentMethod {
	switch b {
	case 0:
		return PaymentMethodSOL
	case 1:
		return PaymentMethodUSDC
	default:
		return PaymentMethodUnknown
	}
}

// String returns the string representation of PaymentMethod.
func (m PaymentMethod) String() string {
	return string(m)
}

// SubscriptionRecord is the decoded subscription account.
// Written only by the ledger program; re-read on every gate check.
type SubscriptionRecord struct {
	Owner         string // base58 wallet address
	ExpiresAtUnix int64
	PaymentMethod PaymentMethod
	Bump          uint8
}

// IsActive reports whether the subscription is still paid for at now.
func (r *SubscriptionRecord) IsActive(now time.Time) bool {
	return r.ExpiresAtUnix > now.Unix()
}

// ExpiresAt returns the expiry as time.Time.
func (r *SubscriptionRecord) ExpiresAt() time.Time {
	return time.Unix(r.ExpiresAtUnix, 0).UTC()
}

// ConfigRecord is the decoded singleton program config account.
type ConfigRecord struct {
	Admin                       string
	FeeWallet                   string
	TokenMint                   string
	SubscriptionPriceLamports   uint64
	SubscriptionPriceUsdcMicros uint64

	// Present only on accounts that carry the full layout.
	SubscriptionDurationSeconds *int64
	StakingFeeShareBps          *uint16
	Bump                        *uint8
}

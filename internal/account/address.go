// Package account derives the program's account addresses and decodes
// their fixed-offset binary layouts.
package account

import (
	"fmt"

	"edgeai-booster/internal/solana"
)

var (
	subscriptionSeed = []byte("subscription")
	configSeed       = []byte("config")
)

// SubscriptionAddress derives the subscription PDA for wallet.
func SubscriptionAddress(wallet, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{subscriptionSeed, wallet.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive subscription address for %s: %w", wallet, err)
	}
	return addr, bump, nil
}

// ConfigAddress derives the singleton config PDA.
func ConfigAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{configSeed}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive config address: %w", err)
	}
	return addr, bump, nil
}

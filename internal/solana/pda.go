package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"

	"edgeai-booster/internal/domain"
)

const (
	// MaxSeeds is the maximum number of seeds (including the bump) the runtime accepts.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

// FindProgramAddress derives a Program Derived Address using the Solana algorithm:
// for bump 255 down to 0, sha256(seeds || bump || programID || "ProgramDerivedAddress"),
// accepting the first hash that is not a valid ed25519 point.
//
// Failure to find a bump wraps domain.ErrConfiguration.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return PublicKey{}, 0, fmt.Errorf("%w: %d seeds exceeds limit", domain.ErrConfiguration, len(seeds))
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return PublicKey{}, 0, fmt.Errorf("%w: seed %d is %d bytes", domain.ErrConfiguration, i, len(seed))
		}
	}

	for bump := 255; bump >= 0; bump-- {
		candidate := createProgramAddress(seeds, uint8(bump), programID)
		if !IsOnCurve(candidate[:]) {
			return candidate, uint8(bump), nil
		}
	}

	return PublicKey{}, 0, fmt.Errorf("%w: no off-curve address for program %s", domain.ErrConfiguration, programID)
}

func createProgramAddress(seeds [][]byte, bump uint8, programID PublicKey) PublicKey {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	return pk
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

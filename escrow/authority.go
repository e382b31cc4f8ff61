// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package escrow derives the program-controlled authority that moves value
// out of custodial staking accounts. The authority is a provable identity
// with no corresponding private key: it is the hash of a fixed domain tag,
// the staking account's key, and a discriminator byte, so only code that
// re-derives the same inputs can act as it.
package escrow

import (
	"errors"

	"github.com/luxfi/ids"

	"github.com/luxfi/rwavm/utils/hashing"
)

// AuthorityTag is the domain-separation tag for escrow authority derivation.
const AuthorityTag = "escrow-authority"

// ErrDiscriminatorExhausted is returned when no discriminator yields a valid
// authority. The search space is a full byte, so hitting this is a fatal
// configuration error, not a retryable condition.
var ErrDiscriminatorExhausted = errors.New("escrow authority discriminator space exhausted")

// Derive returns the escrow authority for the staking account with the given
// key, along with the discriminator it was found at. Derivation is pure and
// deterministic: the same key always yields the same identity, and distinct
// keys never share one. Discriminators are scanned downward from 255.
func Derive(stakingAccountKey []byte) (ids.ShortID, uint8, error) {
	for disc := 255; disc >= 0; disc-- {
		id := deriveAt(stakingAccountKey, uint8(disc))
		if id != ids.ShortEmpty {
			return id, uint8(disc), nil
		}
	}
	return ids.ShortEmpty, 0, ErrDiscriminatorExhausted
}

// Verify reports whether presented is exactly the authority derived for the
// staking account key at the given discriminator.
func Verify(presented ids.ShortID, stakingAccountKey []byte, disc uint8) bool {
	return presented != ids.ShortEmpty && presented == deriveAt(stakingAccountKey, disc)
}

func deriveAt(stakingAccountKey []byte, disc uint8) ids.ShortID {
	preimage := make([]byte, 0, len(AuthorityTag)+len(stakingAccountKey)+1)
	preimage = append(preimage, AuthorityTag...)
	preimage = append(preimage, stakingAccountKey...)
	preimage = append(preimage, disc)

	hash := hashing.ComputeHash256(preimage)
	var id ids.ShortID
	copy(id[:], hash[:ids.ShortIDLen])
	return id
}

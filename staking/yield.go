// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staking

import (
	"errors"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	safemath "github.com/luxfi/math"

	"github.com/luxfi/rwavm/token"
)

// ErrClockRegression is returned when a claim observes a timestamp earlier
// than the account's last settlement. The claim is rejected outright; the
// interval is never clamped.
var ErrClockRegression = errors.New("clock regressed before last settlement time")

// DefaultRewardRate is the placeholder linear reward rate, in reward units
// per staked second.
const DefaultRewardRate = 10

// RatePolicy supplies the reward rate for a value class. The linear-in-time
// model is fixed; only the rate itself is pluggable.
type RatePolicy interface {
	RatePerSecond(classID ids.ID) uint64
}

// FixedRate is a RatePolicy paying the same rate for every class.
type FixedRate uint64

func (r FixedRate) RatePerSecond(ids.ID) uint64 {
	return uint64(r)
}

// Accruer computes and pays out time-accrued rewards.
type Accruer struct {
	registry token.Registry
	rate     RatePolicy
	log      log.Logger
}

// NewAccruer creates a yield accrual engine minting through registry.
func NewAccruer(registry token.Registry, rate RatePolicy, logger log.Logger) *Accruer {
	return &Accruer{
		registry: registry,
		rate:     rate,
		log:      logger,
	}
}

// Accrue pays the reward earned by acct since its last settlement, minting
// to rewardAccount under rewardAuthority, and advances the settlement clock
// to now. The mint must succeed before the clock moves, so an interval is
// never settled without being paid, and a settled interval is never paid
// again. Returns the accrued amount.
func (a *Accruer) Accrue(
	acct *Account,
	now int64,
	rewardClassID ids.ID,
	rewardAccount ids.ShortID,
	rewardAuthority ids.ShortID,
) (uint64, error) {
	if now < acct.LastSettledTime {
		return 0, ErrClockRegression
	}

	elapsed := uint64(now - acct.LastSettledTime)
	amount, err := safemath.Mul(elapsed, a.rate.RatePerSecond(rewardClassID))
	if err != nil {
		return 0, err
	}

	if err := a.registry.Mint(rewardClassID, rewardAccount, amount, rewardAuthority); err != nil {
		return 0, err
	}
	acct.LastSettledTime = now

	a.log.Debug("accrued yield",
		"staker", acct.Staker,
		"elapsed", elapsed,
		"amount", amount,
	)
	return amount, nil
}

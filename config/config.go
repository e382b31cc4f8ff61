// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// Config contains the RWA VM parameters.
type Config struct {
	// StorageDeposit is the refundable native reservation charged per
	// staking account record.
	StorageDeposit uint64 `json:"storageDeposit"`

	// RewardRatePerSecond is the linear yield rate paid per staked second.
	RewardRatePerSecond uint64 `json:"rewardRatePerSecond"`
}

// Default returns the default VM configuration.
func Default() Config {
	return Config{
		StorageDeposit:      1_000_000,
		RewardRatePerSecond: 10,
	}
}

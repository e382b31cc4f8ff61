// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"github.com/spf13/pflag"

	"github.com/luxfi/rwavm/config"
)

const (
	HTTPAddrKey       = "http-addr"
	StorageDepositKey = "storage-deposit"
	RewardRateKey     = "reward-rate"
)

func AddFlags(flags *pflag.FlagSet) {
	defaults := config.Default()
	flags.String(HTTPAddrKey, ":8732", "Address for the JSON-RPC server to listen on")
	flags.Uint64(StorageDepositKey, defaults.StorageDeposit, "Native units charged to open a staking account, refunded on close")
	flags.Uint64(RewardRateKey, defaults.RewardRatePerSecond, "Yield units accrued per second of staking")
}

type Flags struct {
	HTTPAddr string
	Config   config.Config
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Flags, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	httpAddr, err := flags.GetString(HTTPAddrKey)
	if err != nil {
		return nil, err
	}

	storageDeposit, err := flags.GetUint64(StorageDepositKey)
	if err != nil {
		return nil, err
	}

	rewardRate, err := flags.GetUint64(RewardRateKey)
	if err != nil {
		return nil, err
	}

	return &Flags{
		HTTPAddr: httpAddr,
		Config: config.Config{
			StorageDeposit:      storageDeposit,
			RewardRatePerSecond: rewardRate,
		},
	}, nil
}

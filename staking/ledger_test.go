// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staking

import (
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rwavm/escrow"
	"github.com/luxfi/rwavm/token"
	"github.com/luxfi/rwavm/utils/timer/mockable"
)

type testEnv struct {
	tokens    *token.Ledger
	ledger    *Ledger
	clk       *mockable.Clock
	issuer    ids.ShortID
	staker    ids.ShortID
	classID   ids.ID
	custodial ids.ShortID
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		issuer: ids.ShortID{1},
		staker: ids.ShortID{2},
	}

	env.tokens = token.NewLedger(memdb.New(), log.NewNoOpLogger())

	classID, err := env.tokens.CreateValueClass(6, env.issuer, env.issuer)
	require.NoError(t, err)
	env.classID = classID

	require.NoError(t, env.tokens.OpenAccount(env.staker, classID, env.staker))
	require.NoError(t, env.tokens.Mint(classID, env.staker, 1000, env.issuer))

	// The custodial account's address and authority are both the derived
	// escrow capability.
	custodial, _, err := escrow.Derive(AccountKey(env.staker, classID))
	require.NoError(t, err)
	require.NoError(t, env.tokens.OpenCustodialAccount(custodial, classID, custodial))
	env.custodial = custodial

	env.clk = &mockable.Clock{}
	env.clk.Set(time.Unix(1000, 0))

	accruer := NewAccruer(env.tokens, FixedRate(10), log.NewNoOpLogger())
	env.ledger = NewLedger(
		memdb.New(),
		env.tokens,
		accruer,
		env.clk,
		log.NewNoOpLogger(),
		Config{StorageDeposit: 100},
	)
	require.NoError(t, env.ledger.FundNative(env.staker, 500))

	return env
}

func (env *testEnv) balance(t *testing.T, addr ids.ShortID) uint64 {
	balance, err := env.tokens.Balance(addr)
	require.NoError(t, err)
	return balance
}

func TestDepositCreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	acct, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)
	require.Equal(t, env.staker, acct.Staker)
	require.Equal(t, env.classID, acct.ValueClassID)
	require.Equal(t, uint64(500), acct.StakedAmount)
	require.Equal(t, int64(1000), acct.LastSettledTime)
	require.Equal(t, uint64(100), acct.StorageDeposit)

	require.Equal(t, uint64(500), env.balance(t, env.staker))
	require.Equal(t, uint64(500), env.balance(t, env.custodial))

	native, err := env.ledger.NativeBalance(env.staker)
	require.NoError(t, err)
	require.Equal(t, uint64(400), native)
}

func TestDepositAccumulates(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 300)
	require.NoError(t, err)

	// A second deposit adds to the same record without charging another
	// storage deposit or resetting the settlement clock.
	env.clk.Set(time.Unix(1005, 0))
	acct, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 200)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acct.StakedAmount)
	require.Equal(t, int64(1000), acct.LastSettledTime)

	native, err := env.ledger.NativeBalance(env.staker)
	require.NoError(t, err)
	require.Equal(t, uint64(400), native)
}

func TestDepositZeroAmount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 0)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestDepositWrongCustodial(t *testing.T) {
	env := newTestEnv(t)

	// An ordinary account of the right class is not the derived escrow
	// capability.
	impostor := ids.ShortID{9}
	require.NoError(t, env.tokens.OpenAccount(impostor, env.classID, env.staker))

	_, err := env.ledger.Deposit(env.staker, env.staker, impostor, env.classID, 500)
	require.ErrorIs(t, err, ErrEscrowAuthorityMismatch)
}

func TestDepositInsufficientNative(t *testing.T) {
	env := newTestEnv(t)
	poor := ids.ShortID{7}
	require.NoError(t, env.tokens.OpenAccount(poor, env.classID, poor))
	require.NoError(t, env.tokens.Mint(env.classID, poor, 1000, env.issuer))

	custodial, _, err := escrow.Derive(AccountKey(poor, env.classID))
	require.NoError(t, err)
	require.NoError(t, env.tokens.OpenCustodialAccount(custodial, env.classID, custodial))

	_, err = env.ledger.Deposit(poor, poor, custodial, env.classID, 500)
	require.ErrorIs(t, err, ErrInsufficientDeposit)
}

func TestClaim(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)

	env.clk.Set(time.Unix(1010, 0))
	accrued, err := env.ledger.Claim(env.staker, env.classID, env.staker, env.issuer)
	require.NoError(t, err)
	require.Equal(t, uint64(100), accrued)

	// Rewards are minted to the reward account; the staked amount is
	// untouched.
	require.Equal(t, uint64(600), env.balance(t, env.staker))
	acct, err := env.ledger.Account(env.staker, env.classID)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acct.StakedAmount)
	require.Equal(t, int64(1010), acct.LastSettledTime)

	// A second claim at the same instant pays nothing.
	accrued, err = env.ledger.Claim(env.staker, env.classID, env.staker, env.issuer)
	require.NoError(t, err)
	require.Zero(t, accrued)
	require.Equal(t, uint64(600), env.balance(t, env.staker))
}

func TestClaimClockRegression(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)

	env.clk.Set(time.Unix(990, 0))
	_, err = env.ledger.Claim(env.staker, env.classID, env.staker, env.issuer)
	require.ErrorIs(t, err, ErrClockRegression)
}

func TestClaimWithoutAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Claim(env.staker, env.classID, env.staker, env.issuer)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)

	acct, err := env.ledger.Withdraw(env.staker, env.staker, env.custodial, env.classID, 200)
	require.NoError(t, err)
	require.Equal(t, uint64(300), acct.StakedAmount)
	require.Equal(t, uint64(700), env.balance(t, env.staker))
	require.Equal(t, uint64(300), env.balance(t, env.custodial))
}

func TestWithdrawExceedsStake(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)

	_, err = env.ledger.Withdraw(env.staker, env.staker, env.custodial, env.classID, 600)
	require.ErrorIs(t, err, ErrInsufficientStakedBalance)

	// Nothing moved.
	require.Equal(t, uint64(500), env.balance(t, env.staker))
	require.Equal(t, uint64(500), env.balance(t, env.custodial))
	acct, err := env.ledger.Account(env.staker, env.classID)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acct.StakedAmount)
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)

	_, err = env.ledger.Close(env.staker, env.staker, env.classID)
	require.ErrorIs(t, err, ErrNonZeroStakedBalance)

	_, err = env.ledger.Withdraw(env.staker, env.staker, env.custodial, env.classID, 500)
	require.NoError(t, err)

	_, err = env.ledger.Close(ids.ShortID{9}, env.staker, env.classID)
	require.ErrorIs(t, err, ErrUnauthorized)

	refund, err := env.ledger.Close(env.staker, env.staker, env.classID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), refund)

	native, err := env.ledger.NativeBalance(env.staker)
	require.NoError(t, err)
	require.Equal(t, uint64(500), native)

	_, err = env.ledger.Account(env.staker, env.classID)
	require.ErrorIs(t, err, ErrAccountNotFound)

	// Closing is terminal: a later deposit starts a brand-new record.
	env.clk.Set(time.Unix(2000, 0))
	acct, err := env.ledger.Deposit(env.staker, env.staker, env.custodial, env.classID, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), acct.StakedAmount)
	require.Equal(t, int64(2000), acct.LastSettledTime)
}

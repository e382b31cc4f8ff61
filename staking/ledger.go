// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package staking owns the staking-account state machine: open on first
// deposit, accrue yield on claim, withdraw under the derived escrow
// authority, and close once the staked balance reaches zero. A staking
// account's recorded balance mirrors the custodial token account it
// references; every mutation follows a committed registry transfer.
package staking

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	safemath "github.com/luxfi/math"

	"github.com/luxfi/rwavm/escrow"
	"github.com/luxfi/rwavm/token"
	"github.com/luxfi/rwavm/utils/timer/mockable"
)

var (
	ErrZeroAmount                = errors.New("amount must be greater than zero")
	ErrAccountNotFound           = errors.New("staking account not found")
	ErrInsufficientStakedBalance = errors.New("insufficient staked balance")
	ErrNonZeroStakedBalance      = errors.New("staked balance must be zero before closing")
	ErrUnauthorized              = errors.New("caller is not the account's staker")
	ErrEscrowAuthorityMismatch   = errors.New("custodial account is not controlled by the derived escrow authority")
	ErrInsufficientDeposit       = errors.New("insufficient native balance for storage deposit")

	accountPrefix = []byte("stake-account:")
	nativePrefix  = []byte("native:")
)

// AccountSeed is the domain tag for staking account keys.
const AccountSeed = "stake-account"

// Account tracks one staker's claim against the pooled custodial value of a
// value class. At most one exists per (staker, class).
type Account struct {
	Staker          ids.ShortID `json:"staker"`
	ValueClassID    ids.ID      `json:"valueClassId"`
	StakedAmount    uint64      `json:"stakedAmount"`
	LastSettledTime int64       `json:"lastSettledTime"`
	StorageDeposit  uint64      `json:"storageDeposit"`
}

// AccountKey derives the unique record key for (staker, class). The key
// doubles as the seed for escrow authority derivation, so two staking
// accounts can never share an escrow authority.
func AccountKey(staker ids.ShortID, classID ids.ID) []byte {
	key := make([]byte, 0, len(AccountSeed)+ids.ShortIDLen+ids.IDLen)
	key = append(key, AccountSeed...)
	key = append(key, staker[:]...)
	key = append(key, classID[:]...)
	return key
}

// Config carries ledger parameters.
type Config struct {
	// StorageDeposit is the refundable native reservation charged when a
	// staking account record is created and returned when it is closed.
	StorageDeposit uint64
}

// Ledger is the staking-account state machine.
type Ledger struct {
	mu       sync.RWMutex
	db       database.Database
	registry token.Registry
	accruer  *Accruer
	clk      *mockable.Clock
	log      log.Logger
	cfg      Config
}

// NewLedger creates a staking ledger over db, moving value through registry
// and paying yield through accruer.
func NewLedger(
	db database.Database,
	registry token.Registry,
	accruer *Accruer,
	clk *mockable.Clock,
	logger log.Logger,
	cfg Config,
) *Ledger {
	return &Ledger{
		db:       db,
		registry: registry,
		accruer:  accruer,
		clk:      clk,
		log:      logger,
		cfg:      cfg,
	}
}

// Deposit transfers amount from source into the custodial account and
// credits the staker's record, creating it on first deposit. The registry
// transfer is issued before the record mutation; if either step fails the
// enclosing operation aborts with no effect.
func (l *Ledger) Deposit(
	staker ids.ShortID,
	source ids.ShortID,
	custodial ids.ShortID,
	classID ids.ID,
	amount uint64,
) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if err := l.checkCustodial(custodial, staker, classID); err != nil {
		return nil, err
	}

	if err := l.registry.Transfer(source, custodial, amount, staker); err != nil {
		return nil, err
	}

	acct, err := l.getAccount(staker, classID)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		if err := l.chargeStorageDeposit(staker); err != nil {
			return nil, err
		}
		acct = &Account{
			Staker:          staker,
			ValueClassID:    classID,
			StakedAmount:    amount,
			LastSettledTime: l.clk.UnixSecs(),
			StorageDeposit:  l.cfg.StorageDeposit,
		}
	case err != nil:
		return nil, err
	default:
		newAmount, err := safemath.Add(acct.StakedAmount, amount)
		if err != nil {
			return nil, err
		}
		acct.StakedAmount = newAmount
	}

	if err := l.putAccount(acct); err != nil {
		return nil, err
	}

	l.log.Info("deposit",
		"staker", staker,
		"classID", classID,
		"amount", amount,
		"stakedAmount", acct.StakedAmount,
	)
	return acct, nil
}

// Claim settles the reward accrued since the last settlement, minting it to
// rewardAccount under the designated reward mint authority. The staked
// amount is unchanged. Valid whenever the record exists, including at zero
// stake. Returns the accrued amount.
func (l *Ledger) Claim(
	staker ids.ShortID,
	classID ids.ID,
	rewardAccount ids.ShortID,
	rewardAuthority ids.ShortID,
) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.getAccount(staker, classID)
	if err != nil {
		return 0, err
	}

	accrued, err := l.accruer.Accrue(acct, l.clk.UnixSecs(), classID, rewardAccount, rewardAuthority)
	if err != nil {
		return 0, err
	}

	if err := l.putAccount(acct); err != nil {
		return 0, err
	}
	return accrued, nil
}

// Withdraw moves amount from the custodial account back to destination,
// authorized as the escrow authority derived for this record, and debits the
// staker's claim. Fails without effect if amount exceeds the staked balance.
func (l *Ledger) Withdraw(
	staker ids.ShortID,
	destination ids.ShortID,
	custodial ids.ShortID,
	classID ids.ID,
	amount uint64,
) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == 0 {
		return nil, ErrZeroAmount
	}

	acct, err := l.getAccount(staker, classID)
	if err != nil {
		return nil, err
	}
	if amount > acct.StakedAmount {
		return nil, ErrInsufficientStakedBalance
	}

	if err := l.checkCustodial(custodial, staker, classID); err != nil {
		return nil, err
	}

	// Act as the derived escrow capability: the registry re-derives the
	// authority from the record key and refuses anything else.
	key := AccountKey(staker, classID)
	_, disc, err := escrow.Derive(key)
	if err != nil {
		return nil, err
	}
	if err := l.registry.TransferAsDerived(custodial, destination, amount, key, disc); err != nil {
		return nil, err
	}

	newAmount, err := safemath.Sub(acct.StakedAmount, amount)
	if err != nil {
		return nil, err
	}
	acct.StakedAmount = newAmount

	if err := l.putAccount(acct); err != nil {
		return nil, err
	}

	l.log.Info("withdraw",
		"staker", staker,
		"classID", classID,
		"amount", amount,
		"stakedAmount", acct.StakedAmount,
	)
	return acct, nil
}

// Close destroys the record once its staked balance is zero and refunds the
// storage deposit to the staker. Only the record's staker may close it.
// Closing is terminal; a later deposit creates a brand-new record.
func (l *Ledger) Close(caller, staker ids.ShortID, classID ids.ID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.getAccount(staker, classID)
	if err != nil {
		return 0, err
	}
	if caller != acct.Staker {
		return 0, ErrUnauthorized
	}
	if acct.StakedAmount != 0 {
		return 0, ErrNonZeroStakedBalance
	}

	if err := l.db.Delete(append(accountPrefix, AccountKey(staker, classID)...)); err != nil {
		return 0, err
	}
	if err := l.creditNative(staker, acct.StorageDeposit); err != nil {
		return 0, err
	}

	l.log.Info("closed staking account",
		"staker", staker,
		"classID", classID,
		"refund", acct.StorageDeposit,
	)
	return acct.StorageDeposit, nil
}

// Account returns the record for (staker, class).
func (l *Ledger) Account(staker ids.ShortID, classID ids.ID) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getAccount(staker, classID)
}

// NativeBalance returns addr's native balance, from which storage deposits
// are charged and to which refunds return.
func (l *Ledger) NativeBalance(addr ids.ShortID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getNative(addr)
}

// FundNative credits addr's native balance. Used at genesis and in tests.
func (l *Ledger) FundNative(addr ids.ShortID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditNative(addr, amount)
}

// checkCustodial verifies that the custodial account exists, holds the right
// value class, is marked program-controlled, and is controlled by exactly
// the escrow authority derived for this staking record.
func (l *Ledger) checkCustodial(custodial, staker ids.ShortID, classID ids.ID) error {
	acct, err := l.registry.Account(custodial)
	if err != nil {
		return err
	}
	if acct.ValueClassID != classID {
		return token.ErrClassMismatch
	}
	if !acct.Custodial {
		return ErrEscrowAuthorityMismatch
	}

	key := AccountKey(staker, classID)
	authority, disc, err := escrow.Derive(key)
	if err != nil {
		return err
	}
	if acct.Authority != authority || !escrow.Verify(acct.Authority, key, disc) {
		return ErrEscrowAuthorityMismatch
	}
	return nil
}

func (l *Ledger) chargeStorageDeposit(staker ids.ShortID) error {
	if l.cfg.StorageDeposit == 0 {
		return nil
	}
	balance, err := l.getNative(staker)
	if err != nil {
		return err
	}
	if balance < l.cfg.StorageDeposit {
		return ErrInsufficientDeposit
	}
	return l.putNative(staker, balance-l.cfg.StorageDeposit)
}

func (l *Ledger) creditNative(addr ids.ShortID, amount uint64) error {
	balance, err := l.getNative(addr)
	if err != nil {
		return err
	}
	newBalance, err := safemath.Add(balance, amount)
	if err != nil {
		return err
	}
	return l.putNative(addr, newBalance)
}

func (l *Ledger) getNative(addr ids.ShortID) (uint64, error) {
	data, err := l.db.Get(append(nativePrefix, addr[:]...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

func (l *Ledger) putNative(addr ids.ShortID, balance uint64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, balance)
	return l.db.Put(append(nativePrefix, addr[:]...), data)
}

func (l *Ledger) getAccount(staker ids.ShortID, classID ids.ID) (*Account, error) {
	data, err := l.db.Get(append(accountPrefix, AccountKey(staker, classID)...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	acct := &Account{}
	if err := json.Unmarshal(data, acct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staking account: %w", err)
	}
	return acct, nil
}

func (l *Ledger) putAccount(acct *Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("failed to marshal staking account: %w", err)
	}
	key := append(accountPrefix, AccountKey(acct.Staker, acct.ValueClassID)...)
	return l.db.Put(key, data)
}

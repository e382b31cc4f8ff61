// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rwavm implements the real-world asset tokenization VM: asset
// records bound to fungible value classes, a staking ledger holding pooled
// value in escrow under a derived capability, time-accrued yield, and
// authority delegation over the value registry.
//
// Every public operation is atomic. Mutations are buffered in a version
// layer and committed only after the whole operation, including its event
// record, has succeeded; any failure aborts the buffer with no effect.
package rwavm

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/utils/json"

	"github.com/luxfi/rwavm/assets"
	"github.com/luxfi/rwavm/config"
	"github.com/luxfi/rwavm/escrow"
	"github.com/luxfi/rwavm/events"
	"github.com/luxfi/rwavm/metrics"
	"github.com/luxfi/rwavm/oracle"
	"github.com/luxfi/rwavm/staking"
	"github.com/luxfi/rwavm/token"
	"github.com/luxfi/rwavm/utils/timer/mockable"
)

// Version of the RWA VM.
const Version = "1.0.0"

// Database partitions.
var (
	tokenPrefix   = []byte("token")
	stakingPrefix = []byte("staking")
	assetPrefix   = []byte("assets")
	oraclePrefix  = []byte("oracle")
	eventPrefix   = []byte("events")
)

// Operation names, as they appear in the event log and metrics.
const (
	OpCreateAsset       = "createAsset"
	OpUpdateLocator     = "updateLocator"
	OpFreeze            = "freeze"
	OpThaw              = "thaw"
	OpBurn              = "burn"
	OpOpenAccount       = "openAccount"
	OpDeposit           = "deposit"
	OpClaim             = "claim"
	OpWithdraw          = "withdraw"
	OpClose             = "close"
	OpDelegateAuthority = "delegateAuthority"
	OpUpdatePrice       = "updatePrice"
	OpFundNative        = "fundNative"
)

// VM wires the components together and enforces the operation boundary.
type VM struct {
	mu    sync.RWMutex
	db    database.Database
	state *versiondb.Database
	log   log.Logger
	clock mockable.Clock

	metrics   metrics.Metrics
	tokens    *token.Ledger
	staking   *staking.Ledger
	assets    *assets.Registry
	oracle    *oracle.Feed
	events    *events.Log
	delegator *token.Delegator

	rpcServer *rpc.Server
}

// New creates a VM persisting to db.
func New(db database.Database, logger log.Logger, cfg config.Config) (*VM, error) {
	vm := &VM{
		db:  db,
		log: logger,
	}
	vm.state = versiondb.New(db)

	vm.tokens = token.NewLedger(prefixdb.New(tokenPrefix, vm.state), logger)
	accruer := staking.NewAccruer(
		vm.tokens,
		staking.FixedRate(cfg.RewardRatePerSecond),
		logger,
	)
	vm.staking = staking.NewLedger(
		prefixdb.New(stakingPrefix, vm.state),
		vm.tokens,
		accruer,
		&vm.clock,
		logger,
		staking.Config{StorageDeposit: cfg.StorageDeposit},
	)
	vm.assets = assets.NewRegistry(prefixdb.New(assetPrefix, vm.state), vm.tokens, logger)
	vm.oracle = oracle.NewFeed(prefixdb.New(oraclePrefix, vm.state), &vm.clock)
	vm.events = events.New(prefixdb.New(eventPrefix, vm.state))
	vm.delegator = token.NewDelegator(vm.tokens, logger)

	m, err := metrics.New(metric.NewRegistry())
	if err != nil {
		return nil, err
	}
	vm.metrics = m

	if err := vm.initializeHTTPHandlers(); err != nil {
		return nil, err
	}

	logger.Info("initialized rwavm",
		"version", Version,
		"storageDeposit", cfg.StorageDeposit,
		"rewardRatePerSecond", cfg.RewardRatePerSecond,
	)
	return vm, nil
}

// run executes one operation inside the atomic boundary: fn's buffered
// writes and the event record commit together, or not at all.
func (vm *VM) run(op string, actor ids.ShortID, fn func() (uint64, error)) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	amount, err := fn()
	if err == nil {
		err = vm.events.Append(events.Event{
			Op:        op,
			Actor:     actor,
			Amount:    amount,
			Timestamp: vm.clock.UnixSecs(),
		})
	}
	if err == nil {
		err = vm.state.Commit()
	}
	if err != nil {
		vm.state.Abort()
		vm.metrics.MarkRejected(op)
		vm.log.Debug("operation aborted",
			"op", op,
			"actor", actor,
			"error", err,
		)
		return err
	}

	vm.metrics.MarkAccepted(op)
	return nil
}

// CreateAsset registers a new asset backed by a fresh value class and mints
// its total supply to destination.
func (vm *VM) CreateAsset(
	creator ids.ShortID,
	name, symbol, locator string,
	decimals uint8,
	totalSupply uint64,
	destination ids.ShortID,
) (*assets.Record, error) {
	var rec *assets.Record
	err := vm.run(OpCreateAsset, creator, func() (uint64, error) {
		var err error
		rec, err = vm.assets.Create(creator, name, symbol, locator, decimals, totalSupply, destination)
		return totalSupply, err
	})
	return rec, err
}

// UpdateAssetLocator replaces an asset record's locator.
func (vm *VM) UpdateAssetLocator(updater, creator ids.ShortID, name, newLocator string) (*assets.Record, error) {
	var rec *assets.Record
	err := vm.run(OpUpdateLocator, updater, func() (uint64, error) {
		var err error
		rec, err = vm.assets.UpdateLocator(updater, creator, name, newLocator)
		return 0, err
	})
	return rec, err
}

// FreezeAccount blocks transfers on a token account.
func (vm *VM) FreezeAccount(authority, account ids.ShortID, classID ids.ID) error {
	return vm.run(OpFreeze, authority, func() (uint64, error) {
		return 0, vm.tokens.Freeze(account, classID, authority)
	})
}

// ThawAccount lifts a freeze on a token account.
func (vm *VM) ThawAccount(authority, account ids.ShortID, classID ids.ID) error {
	return vm.run(OpThaw, authority, func() (uint64, error) {
		return 0, vm.tokens.Thaw(account, classID, authority)
	})
}

// BurnTokens destroys amount from a token account.
func (vm *VM) BurnTokens(authority, account ids.ShortID, classID ids.ID, amount uint64) error {
	return vm.run(OpBurn, authority, func() (uint64, error) {
		return amount, vm.tokens.Burn(account, classID, amount, authority)
	})
}

// OpenTokenAccount creates an empty token account.
func (vm *VM) OpenTokenAccount(addr ids.ShortID, classID ids.ID, authority ids.ShortID) error {
	return vm.run(OpOpenAccount, authority, func() (uint64, error) {
		return 0, vm.tokens.OpenAccount(addr, classID, authority)
	})
}

// OpenCustodialAccount creates the escrow token account for (staker, class):
// its address and its authority are both the derived escrow capability.
func (vm *VM) OpenCustodialAccount(staker ids.ShortID, classID ids.ID) (ids.ShortID, error) {
	authority, _, err := escrow.Derive(staking.AccountKey(staker, classID))
	if err != nil {
		return ids.ShortEmpty, err
	}
	err = vm.run(OpOpenAccount, staker, func() (uint64, error) {
		return 0, vm.tokens.OpenCustodialAccount(authority, classID, authority)
	})
	if err != nil {
		return ids.ShortEmpty, err
	}
	return authority, nil
}

// EscrowAddress returns the derived escrow capability for (staker, class).
func (vm *VM) EscrowAddress(staker ids.ShortID, classID ids.ID) (ids.ShortID, error) {
	authority, _, err := escrow.Derive(staking.AccountKey(staker, classID))
	return authority, err
}

// Deposit stakes amount from source into the custodial account.
func (vm *VM) Deposit(
	staker, source, custodial ids.ShortID,
	classID ids.ID,
	amount uint64,
) (*staking.Account, error) {
	var acct *staking.Account
	err := vm.run(OpDeposit, staker, func() (uint64, error) {
		var err error
		acct, err = vm.staking.Deposit(staker, source, custodial, classID, amount)
		return amount, err
	})
	return acct, err
}

// Claim settles accrued yield, minting it to rewardAccount.
func (vm *VM) Claim(
	staker ids.ShortID,
	classID ids.ID,
	rewardAccount, rewardAuthority ids.ShortID,
) (uint64, error) {
	var accrued uint64
	err := vm.run(OpClaim, staker, func() (uint64, error) {
		var err error
		accrued, err = vm.staking.Claim(staker, classID, rewardAccount, rewardAuthority)
		return accrued, err
	})
	return accrued, err
}

// Withdraw unstakes amount from the custodial account back to destination.
func (vm *VM) Withdraw(
	staker, destination, custodial ids.ShortID,
	classID ids.ID,
	amount uint64,
) (*staking.Account, error) {
	var acct *staking.Account
	err := vm.run(OpWithdraw, staker, func() (uint64, error) {
		var err error
		acct, err = vm.staking.Withdraw(staker, destination, custodial, classID, amount)
		return amount, err
	})
	return acct, err
}

// CloseStakingAccount destroys a zero-balance staking record and refunds its
// storage deposit.
func (vm *VM) CloseStakingAccount(caller, staker ids.ShortID, classID ids.ID) (uint64, error) {
	var refund uint64
	err := vm.run(OpClose, caller, func() (uint64, error) {
		var err error
		refund, err = vm.staking.Close(caller, staker, classID)
		return refund, err
	})
	return refund, err
}

// DelegateAuthority hands the class's mint or freeze authority to next.
func (vm *VM) DelegateAuthority(
	classID ids.ID,
	kind token.AuthorityKind,
	current, next ids.ShortID,
) (*token.Delegation, error) {
	var del *token.Delegation
	err := vm.run(OpDelegateAuthority, current, func() (uint64, error) {
		var err error
		del, err = vm.delegator.Delegate(classID, kind, current, next)
		return 0, err
	})
	return del, err
}

// UpdatePrice overwrites the price record for symbol.
func (vm *VM) UpdatePrice(updater ids.ShortID, symbol string, price uint64) (*oracle.Record, error) {
	var rec *oracle.Record
	err := vm.run(OpUpdatePrice, updater, func() (uint64, error) {
		var err error
		rec, err = vm.oracle.Update(updater, symbol, price)
		return price, err
	})
	return rec, err
}

// FundNative credits addr's native balance, from which storage deposits are
// charged. Used at genesis.
func (vm *VM) FundNative(addr ids.ShortID, amount uint64) error {
	return vm.run(OpFundNative, addr, func() (uint64, error) {
		return amount, vm.staking.FundNative(addr, amount)
	})
}

// Read-only accessors. Reads hold the operation lock so they observe
// committed state only, never writes buffered by an in-flight operation.

func (vm *VM) StakingAccount(staker ids.ShortID, classID ids.ID) (*staking.Account, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.staking.Account(staker, classID)
}

func (vm *VM) NativeBalance(addr ids.ShortID) (uint64, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.staking.NativeBalance(addr)
}

func (vm *VM) Asset(creator ids.ShortID, name string) (*assets.Record, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.assets.Get(creator, name)
}

func (vm *VM) TokenAccount(addr ids.ShortID) (*token.Account, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.tokens.Account(addr)
}

func (vm *VM) TokenBalance(addr ids.ShortID) (uint64, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.tokens.Balance(addr)
}

func (vm *VM) ValueClass(classID ids.ID) (*token.ValueClass, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.tokens.Class(classID)
}

func (vm *VM) Price(symbol string) (*oracle.Record, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.oracle.Get(symbol)
}

func (vm *VM) Events(offset, limit uint64) ([]*events.Event, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.events.List(offset, limit)
}

// Clock returns the VM clock. Tests pin it to simulated time.
func (vm *VM) Clock() *mockable.Clock {
	return &vm.clock
}

// CreateHandlers returns the HTTP handlers for the VM.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	return map[string]http.Handler{
		"/rpc": vm.rpcServer,
	}, nil
}

// Shutdown flushes and closes the VM.
func (vm *VM) Shutdown(context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.log.Info("shutting down rwavm")
	if err := vm.state.Close(); err != nil {
		return err
	}
	return vm.db.Close()
}

func (vm *VM) initializeHTTPHandlers() error {
	vm.rpcServer = rpc.NewServer()

	service := &Service{vm: vm}
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json")
	vm.rpcServer.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	return vm.rpcServer.RegisterService(service, "rwa")
}

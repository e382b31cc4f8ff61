// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rwavm

import (
	"net/http"

	"github.com/luxfi/ids"

	"github.com/luxfi/rwavm/token"
)

// Service provides the JSON-RPC endpoints for the RWA VM.
type Service struct {
	vm *VM
}

// ======== Asset API ========

// CreateAssetArgs contains arguments for CreateAsset.
type CreateAssetArgs struct {
	Creator     string `json:"creator"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Locator     string `json:"locator"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply uint64 `json:"totalSupply"`
	Destination string `json:"destination"`
}

// AssetReply is the JSON representation of an asset record.
type AssetReply struct {
	Creator      string `json:"creator"`
	ValueClassID string `json:"valueClassId"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Locator      string `json:"locator"`
	Decimals     uint8  `json:"decimals"`
}

// CreateAsset registers a new asset and mints its total supply.
func (s *Service) CreateAsset(_ *http.Request, args *CreateAssetArgs, reply *AssetReply) error {
	creator, err := ids.ShortFromString(args.Creator)
	if err != nil {
		return err
	}
	destination, err := ids.ShortFromString(args.Destination)
	if err != nil {
		return err
	}

	rec, err := s.vm.CreateAsset(creator, args.Name, args.Symbol, args.Locator, args.Decimals, args.TotalSupply, destination)
	if err != nil {
		return err
	}

	reply.Creator = rec.Creator.String()
	reply.ValueClassID = rec.ValueClassID.String()
	reply.Name = rec.Name
	reply.Symbol = rec.Symbol
	reply.Locator = rec.Locator
	reply.Decimals = rec.Decimals
	return nil
}

// UpdateLocatorArgs contains arguments for UpdateLocator.
type UpdateLocatorArgs struct {
	Updater    string `json:"updater"`
	Creator    string `json:"creator"`
	Name       string `json:"name"`
	NewLocator string `json:"newLocator"`
}

// UpdateLocator replaces an asset record's locator.
func (s *Service) UpdateLocator(_ *http.Request, args *UpdateLocatorArgs, reply *AssetReply) error {
	updater, err := ids.ShortFromString(args.Updater)
	if err != nil {
		return err
	}
	creator, err := ids.ShortFromString(args.Creator)
	if err != nil {
		return err
	}

	rec, err := s.vm.UpdateAssetLocator(updater, creator, args.Name, args.NewLocator)
	if err != nil {
		return err
	}

	reply.Creator = rec.Creator.String()
	reply.ValueClassID = rec.ValueClassID.String()
	reply.Name = rec.Name
	reply.Symbol = rec.Symbol
	reply.Locator = rec.Locator
	reply.Decimals = rec.Decimals
	return nil
}

// GetAssetArgs contains arguments for GetAsset.
type GetAssetArgs struct {
	Creator string `json:"creator"`
	Name    string `json:"name"`
}

// GetAsset returns an asset record.
func (s *Service) GetAsset(_ *http.Request, args *GetAssetArgs, reply *AssetReply) error {
	creator, err := ids.ShortFromString(args.Creator)
	if err != nil {
		return err
	}

	rec, err := s.vm.Asset(creator, args.Name)
	if err != nil {
		return err
	}

	reply.Creator = rec.Creator.String()
	reply.ValueClassID = rec.ValueClassID.String()
	reply.Name = rec.Name
	reply.Symbol = rec.Symbol
	reply.Locator = rec.Locator
	reply.Decimals = rec.Decimals
	return nil
}

// ======== Token API ========

// FreezeArgs contains arguments for Freeze and Thaw.
type FreezeArgs struct {
	Authority    string `json:"authority"`
	Account      string `json:"account"`
	ValueClassID string `json:"valueClassId"`
}

// FreezeReply is an empty acknowledgement.
type FreezeReply struct{}

// Freeze blocks transfers on a token account.
func (s *Service) Freeze(_ *http.Request, args *FreezeArgs, _ *FreezeReply) error {
	authority, account, classID, err := parseFreezeArgs(args)
	if err != nil {
		return err
	}
	return s.vm.FreezeAccount(authority, account, classID)
}

// Thaw lifts a freeze on a token account.
func (s *Service) Thaw(_ *http.Request, args *FreezeArgs, _ *FreezeReply) error {
	authority, account, classID, err := parseFreezeArgs(args)
	if err != nil {
		return err
	}
	return s.vm.ThawAccount(authority, account, classID)
}

func parseFreezeArgs(args *FreezeArgs) (ids.ShortID, ids.ShortID, ids.ID, error) {
	authority, err := ids.ShortFromString(args.Authority)
	if err != nil {
		return ids.ShortEmpty, ids.ShortEmpty, ids.Empty, err
	}
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return ids.ShortEmpty, ids.ShortEmpty, ids.Empty, err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return ids.ShortEmpty, ids.ShortEmpty, ids.Empty, err
	}
	return authority, account, classID, nil
}

// BurnArgs contains arguments for Burn.
type BurnArgs struct {
	Authority    string `json:"authority"`
	Account      string `json:"account"`
	ValueClassID string `json:"valueClassId"`
	Amount       uint64 `json:"amount"`
}

// Burn destroys tokens from an account.
func (s *Service) Burn(_ *http.Request, args *BurnArgs, _ *FreezeReply) error {
	authority, err := ids.ShortFromString(args.Authority)
	if err != nil {
		return err
	}
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}
	return s.vm.BurnTokens(authority, account, classID, args.Amount)
}

// GetBalanceArgs contains arguments for GetBalance.
type GetBalanceArgs struct {
	Account string `json:"account"`
}

// GetBalanceReply contains the account balance.
type GetBalanceReply struct {
	Balance uint64 `json:"balance"`
}

// GetBalance returns a token account's balance.
func (s *Service) GetBalance(_ *http.Request, args *GetBalanceArgs, reply *GetBalanceReply) error {
	account, err := ids.ShortFromString(args.Account)
	if err != nil {
		return err
	}

	balance, err := s.vm.TokenBalance(account)
	if err != nil {
		return err
	}
	reply.Balance = balance
	return nil
}

// ======== Account API ========

// OpenAccountArgs contains arguments for OpenAccount.
type OpenAccountArgs struct {
	Address      string `json:"address"`
	ValueClassID string `json:"valueClassId"`
	Authority    string `json:"authority"`
}

// OpenAccountReply is an empty acknowledgement.
type OpenAccountReply struct{}

// OpenAccount creates an empty token account.
func (s *Service) OpenAccount(_ *http.Request, args *OpenAccountArgs, _ *OpenAccountReply) error {
	address, err := ids.ShortFromString(args.Address)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}
	authority, err := ids.ShortFromString(args.Authority)
	if err != nil {
		return err
	}
	return s.vm.OpenTokenAccount(address, classID, authority)
}

// CustodialArgs contains arguments for OpenCustodialAccount and
// GetEscrowAddress.
type CustodialArgs struct {
	Staker       string `json:"staker"`
	ValueClassID string `json:"valueClassId"`
}

// AddressReply contains a derived account address.
type AddressReply struct {
	Address string `json:"address"`
}

// OpenCustodialAccount creates the escrow account for (staker, class) and
// returns its derived address.
func (s *Service) OpenCustodialAccount(_ *http.Request, args *CustodialArgs, reply *AddressReply) error {
	staker, classID, err := parseCustodialArgs(args)
	if err != nil {
		return err
	}

	addr, err := s.vm.OpenCustodialAccount(staker, classID)
	if err != nil {
		return err
	}
	reply.Address = addr.String()
	return nil
}

// GetEscrowAddress returns the derived escrow capability for (staker, class)
// without creating anything.
func (s *Service) GetEscrowAddress(_ *http.Request, args *CustodialArgs, reply *AddressReply) error {
	staker, classID, err := parseCustodialArgs(args)
	if err != nil {
		return err
	}

	addr, err := s.vm.EscrowAddress(staker, classID)
	if err != nil {
		return err
	}
	reply.Address = addr.String()
	return nil
}

func parseCustodialArgs(args *CustodialArgs) (ids.ShortID, ids.ID, error) {
	staker, err := ids.ShortFromString(args.Staker)
	if err != nil {
		return ids.ShortEmpty, ids.Empty, err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return ids.ShortEmpty, ids.Empty, err
	}
	return staker, classID, nil
}

// FundNativeArgs contains arguments for FundNative.
type FundNativeArgs struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// NativeBalanceReply contains a native balance.
type NativeBalanceReply struct {
	Balance uint64 `json:"balance"`
}

// FundNative credits an address's native balance, from which storage
// deposits are charged.
func (s *Service) FundNative(_ *http.Request, args *FundNativeArgs, reply *NativeBalanceReply) error {
	address, err := ids.ShortFromString(args.Address)
	if err != nil {
		return err
	}

	if err := s.vm.FundNative(address, args.Amount); err != nil {
		return err
	}

	balance, err := s.vm.NativeBalance(address)
	if err != nil {
		return err
	}
	reply.Balance = balance
	return nil
}

// GetNativeBalanceArgs contains arguments for GetNativeBalance.
type GetNativeBalanceArgs struct {
	Address string `json:"address"`
}

// GetNativeBalance returns an address's native balance.
func (s *Service) GetNativeBalance(_ *http.Request, args *GetNativeBalanceArgs, reply *NativeBalanceReply) error {
	address, err := ids.ShortFromString(args.Address)
	if err != nil {
		return err
	}

	balance, err := s.vm.NativeBalance(address)
	if err != nil {
		return err
	}
	reply.Balance = balance
	return nil
}

// ======== Staking API ========

// DepositArgs contains arguments for Deposit.
type DepositArgs struct {
	Staker       string `json:"staker"`
	Source       string `json:"source"`
	Custodial    string `json:"custodial"`
	ValueClassID string `json:"valueClassId"`
	Amount       uint64 `json:"amount"`
}

// StakingAccountReply is the JSON representation of a staking account.
type StakingAccountReply struct {
	Staker          string `json:"staker"`
	ValueClassID    string `json:"valueClassId"`
	StakedAmount    uint64 `json:"stakedAmount"`
	LastSettledTime int64  `json:"lastSettledTime"`
	StorageDeposit  uint64 `json:"storageDeposit"`
}

// Deposit stakes tokens into the custodial account.
func (s *Service) Deposit(_ *http.Request, args *DepositArgs, reply *StakingAccountReply) error {
	staker, err := ids.ShortFromString(args.Staker)
	if err != nil {
		return err
	}
	source, err := ids.ShortFromString(args.Source)
	if err != nil {
		return err
	}
	custodial, err := ids.ShortFromString(args.Custodial)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}

	acct, err := s.vm.Deposit(staker, source, custodial, classID, args.Amount)
	if err != nil {
		return err
	}

	reply.Staker = acct.Staker.String()
	reply.ValueClassID = acct.ValueClassID.String()
	reply.StakedAmount = acct.StakedAmount
	reply.LastSettledTime = acct.LastSettledTime
	reply.StorageDeposit = acct.StorageDeposit
	return nil
}

// ClaimArgs contains arguments for Claim.
type ClaimArgs struct {
	Staker          string `json:"staker"`
	ValueClassID    string `json:"valueClassId"`
	RewardAccount   string `json:"rewardAccount"`
	RewardAuthority string `json:"rewardAuthority"`
}

// ClaimReply contains the accrued amount.
type ClaimReply struct {
	Accrued uint64 `json:"accrued"`
}

// Claim settles accrued yield.
func (s *Service) Claim(_ *http.Request, args *ClaimArgs, reply *ClaimReply) error {
	staker, err := ids.ShortFromString(args.Staker)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}
	rewardAccount, err := ids.ShortFromString(args.RewardAccount)
	if err != nil {
		return err
	}
	rewardAuthority, err := ids.ShortFromString(args.RewardAuthority)
	if err != nil {
		return err
	}

	accrued, err := s.vm.Claim(staker, classID, rewardAccount, rewardAuthority)
	if err != nil {
		return err
	}
	reply.Accrued = accrued
	return nil
}

// WithdrawArgs contains arguments for Withdraw.
type WithdrawArgs struct {
	Staker       string `json:"staker"`
	Destination  string `json:"destination"`
	Custodial    string `json:"custodial"`
	ValueClassID string `json:"valueClassId"`
	Amount       uint64 `json:"amount"`
}

// Withdraw unstakes tokens from the custodial account.
func (s *Service) Withdraw(_ *http.Request, args *WithdrawArgs, reply *StakingAccountReply) error {
	staker, err := ids.ShortFromString(args.Staker)
	if err != nil {
		return err
	}
	destination, err := ids.ShortFromString(args.Destination)
	if err != nil {
		return err
	}
	custodial, err := ids.ShortFromString(args.Custodial)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}

	acct, err := s.vm.Withdraw(staker, destination, custodial, classID, args.Amount)
	if err != nil {
		return err
	}

	reply.Staker = acct.Staker.String()
	reply.ValueClassID = acct.ValueClassID.String()
	reply.StakedAmount = acct.StakedAmount
	reply.LastSettledTime = acct.LastSettledTime
	reply.StorageDeposit = acct.StorageDeposit
	return nil
}

// CloseArgs contains arguments for Close.
type CloseArgs struct {
	Caller       string `json:"caller"`
	Staker       string `json:"staker"`
	ValueClassID string `json:"valueClassId"`
}

// CloseReply contains the refunded storage deposit.
type CloseReply struct {
	Refund uint64 `json:"refund"`
}

// Close destroys a zero-balance staking account.
func (s *Service) Close(_ *http.Request, args *CloseArgs, reply *CloseReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	staker, err := ids.ShortFromString(args.Staker)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}

	refund, err := s.vm.CloseStakingAccount(caller, staker, classID)
	if err != nil {
		return err
	}
	reply.Refund = refund
	return nil
}

// GetStakingAccountArgs contains arguments for GetStakingAccount.
type GetStakingAccountArgs struct {
	Staker       string `json:"staker"`
	ValueClassID string `json:"valueClassId"`
}

// GetStakingAccount returns a staking account record.
func (s *Service) GetStakingAccount(_ *http.Request, args *GetStakingAccountArgs, reply *StakingAccountReply) error {
	staker, err := ids.ShortFromString(args.Staker)
	if err != nil {
		return err
	}
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}

	acct, err := s.vm.StakingAccount(staker, classID)
	if err != nil {
		return err
	}

	reply.Staker = acct.Staker.String()
	reply.ValueClassID = acct.ValueClassID.String()
	reply.StakedAmount = acct.StakedAmount
	reply.LastSettledTime = acct.LastSettledTime
	reply.StorageDeposit = acct.StorageDeposit
	return nil
}

// ======== Authority API ========

// DelegateAuthorityArgs contains arguments for DelegateAuthority.
type DelegateAuthorityArgs struct {
	ValueClassID     string `json:"valueClassId"`
	Kind             string `json:"kind"`
	CurrentAuthority string `json:"currentAuthority"`
	NewAuthority     string `json:"newAuthority"`
}

// DelegateAuthorityReply records the completed hand-off.
type DelegateAuthorityReply struct {
	OldAuthority string `json:"oldAuthority"`
	NewAuthority string `json:"newAuthority"`
	Kind         string `json:"kind"`
}

// DelegateAuthority hands a value class authority to a new holder.
func (s *Service) DelegateAuthority(_ *http.Request, args *DelegateAuthorityArgs, reply *DelegateAuthorityReply) error {
	classID, err := ids.FromString(args.ValueClassID)
	if err != nil {
		return err
	}
	current, err := ids.ShortFromString(args.CurrentAuthority)
	if err != nil {
		return err
	}
	next, err := ids.ShortFromString(args.NewAuthority)
	if err != nil {
		return err
	}

	var kind token.AuthorityKind
	switch args.Kind {
	case "mint":
		kind = token.AuthorityMint
	case "freeze":
		kind = token.AuthorityFreeze
	default:
		return token.ErrUnknownAuthority
	}

	del, err := s.vm.DelegateAuthority(classID, kind, current, next)
	if err != nil {
		return err
	}

	reply.OldAuthority = del.OldAuthority.String()
	reply.NewAuthority = del.NewAuthority.String()
	reply.Kind = del.Kind.String()
	return nil
}

// ======== Oracle API ========

// UpdatePriceArgs contains arguments for UpdatePrice.
type UpdatePriceArgs struct {
	Updater string `json:"updater"`
	Symbol  string `json:"symbol"`
	Price   uint64 `json:"price"`
}

// PriceReply is the JSON representation of a price record.
type PriceReply struct {
	Symbol     string `json:"symbol"`
	Price      uint64 `json:"price"`
	LastUpdate int64  `json:"lastUpdate"`
}

// UpdatePrice overwrites the price record for a symbol.
func (s *Service) UpdatePrice(_ *http.Request, args *UpdatePriceArgs, reply *PriceReply) error {
	updater, err := ids.ShortFromString(args.Updater)
	if err != nil {
		return err
	}

	rec, err := s.vm.UpdatePrice(updater, args.Symbol, args.Price)
	if err != nil {
		return err
	}

	reply.Symbol = rec.Symbol
	reply.Price = rec.Price
	reply.LastUpdate = rec.LastUpdate
	return nil
}

// GetPriceArgs contains arguments for GetPrice.
type GetPriceArgs struct {
	Symbol string `json:"symbol"`
}

// GetPrice returns the latest price record for a symbol.
func (s *Service) GetPrice(_ *http.Request, args *GetPriceArgs, reply *PriceReply) error {
	rec, err := s.vm.Price(args.Symbol)
	if err != nil {
		return err
	}

	reply.Symbol = rec.Symbol
	reply.Price = rec.Price
	reply.LastUpdate = rec.LastUpdate
	return nil
}

// ======== Events API ========

// GetEventsArgs contains arguments for GetEvents.
type GetEventsArgs struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// EventReply is the JSON representation of one event.
type EventReply struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Actor     string `json:"actor"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// GetEventsReply contains a page of events.
type GetEventsReply struct {
	Events []EventReply `json:"events"`
}

// GetEvents lists committed operation events in sequence order.
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	evs, err := s.vm.Events(args.Offset, args.Limit)
	if err != nil {
		return err
	}

	reply.Events = make([]EventReply, 0, len(evs))
	for _, ev := range evs {
		reply.Events = append(reply.Events, EventReply{
			Seq:       ev.Seq,
			Op:        ev.Op,
			Actor:     ev.Actor.String(),
			Amount:    ev.Amount,
			Timestamp: ev.Timestamp,
		})
	}
	return nil
}

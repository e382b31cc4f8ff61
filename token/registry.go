// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements the fungible value registry: value classes with
// mint and freeze authorities, and balance-carrying accounts. Every
// operation either fully applies or fails with no effect; durability is
// decided by the enclosing operation's commit.
package token

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
	"github.com/luxfi/rwavm/utils/hashing"
)

var (
	ErrUnauthorized      = errors.New("authority is not permitted to perform this action")
	ErrClassNotFound     = errors.New("value class not found")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountExists     = errors.New("token account already exists")
	ErrClassMismatch     = errors.New("account belongs to a different value class")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountFrozen     = errors.New("account is frozen")
	ErrUnknownAuthority  = errors.New("unknown authority kind")

	classPrefix   = []byte("class:")
	accountPrefix = []byte("tacct:")
	classSeqKey   = []byte("class-seq")
)

// AuthorityKind selects which administrative authority of a value class an
// operation refers to.
type AuthorityKind uint8

const (
	AuthorityMint AuthorityKind = iota
	AuthorityFreeze
)

func (k AuthorityKind) String() string {
	switch k {
	case AuthorityMint:
		return "mint"
	case AuthorityFreeze:
		return "freeze"
	default:
		return "unknown"
	}
}

// ValueClass is a fungible asset definition.
type ValueClass struct {
	ID              ids.ID      `json:"id"`
	Decimals        uint8       `json:"decimals"`
	Supply          uint64      `json:"supply"`
	MintAuthority   ids.ShortID `json:"mintAuthority"`
	FreezeAuthority ids.ShortID `json:"freezeAuthority"`
}

// Account holds a balance of a single value class. Transfers out of the
// account must be authorized by its Authority. A custodial account is
// program-controlled: its Authority is a derived capability with no private
// key, and funds leave it only through TransferAsDerived, never through a
// caller-supplied authority.
type Account struct {
	Address      ids.ShortID `json:"address"`
	ValueClassID ids.ID      `json:"valueClassId"`
	Balance      uint64      `json:"balance"`
	Authority    ids.ShortID `json:"authority"`
	Frozen       bool        `json:"frozen"`
	Custodial    bool        `json:"custodial,omitempty"`
}

// Registry is the contract the rest of the system relies on. Each call is
// atomic: it commits in full before returning or fails with no effect.
type Registry interface {
	CreateValueClass(decimals uint8, mintAuthority, freezeAuthority ids.ShortID) (ids.ID, error)
	OpenAccount(addr ids.ShortID, classID ids.ID, authority ids.ShortID) error
	OpenCustodialAccount(addr ids.ShortID, classID ids.ID, authority ids.ShortID) error
	Mint(classID ids.ID, destination ids.ShortID, amount uint64, authority ids.ShortID) error
	Transfer(from, to ids.ShortID, amount uint64, authority ids.ShortID) error
	TransferAsDerived(from, to ids.ShortID, amount uint64, seedKey []byte, disc uint8) error
	Freeze(account ids.ShortID, classID ids.ID, authority ids.ShortID) error
	Thaw(account ids.ShortID, classID ids.ID, authority ids.ShortID) error
	Burn(account ids.ShortID, classID ids.ID, amount uint64, authority ids.ShortID) error
	SetAuthority(classID ids.ID, kind AuthorityKind, current, next ids.ShortID) error

	Class(classID ids.ID) (*ValueClass, error)
	Account(addr ids.ShortID) (*Account, error)
	Balance(addr ids.ShortID) (uint64, error)
}

var _ Registry = (*Ledger)(nil)

// Ledger implements Registry over a keyed database.
type Ledger struct {
	mu  sync.RWMutex
	db  database.Database
	log log.Logger
}

// NewLedger creates a ledger backed by db.
func NewLedger(db database.Database, logger log.Logger) *Ledger {
	return &Ledger{
		db:  db,
		log: logger,
	}
}

// CreateValueClass registers a new value class and returns its identifier.
// Class identifiers are derived from a persistent sequence number and the
// mint authority, so they are unique per ledger.
func (l *Ledger) CreateValueClass(decimals uint8, mintAuthority, freezeAuthority ids.ShortID) (ids.ID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, err := l.nextClassSeq()
	if err != nil {
		return ids.Empty, err
	}

	preimage := make([]byte, 8+ids.ShortIDLen)
	binary.BigEndian.PutUint64(preimage, seq)
	copy(preimage[8:], mintAuthority[:])
	classID := ids.ID(hashing.ComputeHash256Array(preimage))

	class := &ValueClass{
		ID:              classID,
		Decimals:        decimals,
		MintAuthority:   mintAuthority,
		FreezeAuthority: freezeAuthority,
	}
	if err := l.putClass(class); err != nil {
		return ids.Empty, err
	}

	l.log.Debug("created value class",
		"classID", classID,
		"decimals", decimals,
	)
	return classID, nil
}

// OpenAccount creates an empty account for the given class, controlled by
// authority. Fails if an account already exists at addr.
func (l *Ledger) OpenAccount(addr ids.ShortID, classID ids.ID, authority ids.ShortID) error {
	return l.openAccount(addr, classID, authority, false)
}

// OpenCustodialAccount creates an empty program-controlled account. Its
// funds can only be moved by re-deriving the escrow capability.
func (l *Ledger) OpenCustodialAccount(addr ids.ShortID, classID ids.ID, authority ids.ShortID) error {
	return l.openAccount(addr, classID, authority, true)
}

func (l *Ledger) openAccount(addr ids.ShortID, classID ids.ID, authority ids.ShortID, custodial bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.getClass(classID); err != nil {
		return err
	}
	if _, err := l.getAccount(addr); err == nil {
		return ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	return l.putAccount(&Account{
		Address:      addr,
		ValueClassID: classID,
		Authority:    authority,
		Custodial:    custodial,
	})
}

// Mint credits amount of the class to destination. Only the class's current
// mint authority may mint.
func (l *Ledger) Mint(classID ids.ID, destination ids.ShortID, amount uint64, authority ids.ShortID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	class, err := l.getClass(classID)
	if err != nil {
		return err
	}
	if authority != class.MintAuthority {
		return ErrUnauthorized
	}

	acct, err := l.getAccount(destination)
	if err != nil {
		return err
	}
	if acct.ValueClassID != classID {
		return ErrClassMismatch
	}
	if acct.Frozen {
		return ErrAccountFrozen
	}

	newSupply, err := safemath.Add(class.Supply, amount)
	if err != nil {
		return err
	}
	newBalance, err := safemath.Add(acct.Balance, amount)
	if err != nil {
		return err
	}

	class.Supply = newSupply
	acct.Balance = newBalance
	if err := l.putClass(class); err != nil {
		return err
	}
	return l.putAccount(acct)
}

// Transfer moves amount between two accounts of the same class. The
// authority must control the source account, and neither side may be frozen.
// A custodial source always refuses a caller-supplied authority; the derived
// capability is a public address, so presenting it proves nothing.
func (l *Ledger) Transfer(from, to ids.ShortID, amount uint64, authority ids.ShortID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if src.Custodial {
		return ErrUnauthorized
	}
	if authority != src.Authority {
		return ErrUnauthorized
	}
	return l.move(src, to, amount)
}

// TransferAsDerived moves amount out of a custodial account. The caller acts
// as the derived escrow capability by presenting the seed key and
// discriminator; the transfer is authorized iff re-derivation over those
// inputs reproduces the account's authority exactly.
func (l *Ledger) TransferAsDerived(from, to ids.ShortID, amount uint64, seedKey []byte, disc uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if !src.Custodial {
		return ErrUnauthorized
	}
	if !escrow.Verify(src.Authority, seedKey, disc) {
		return ErrUnauthorized
	}
	return l.move(src, to, amount)
}

func (l *Ledger) move(src *Account, to ids.ShortID, amount uint64) error {
	dst, err := l.getAccount(to)
	if err != nil {
		return err
	}
	if src.ValueClassID != dst.ValueClassID {
		return ErrClassMismatch
	}
	if src.Frozen || dst.Frozen {
		return ErrAccountFrozen
	}
	if src.Balance < amount {
		return ErrInsufficientFunds
	}

	newDst, err := safemath.Add(dst.Balance, amount)
	if err != nil {
		return err
	}
	src.Balance -= amount
	dst.Balance = newDst

	if err := l.putAccount(src); err != nil {
		return err
	}
	return l.putAccount(dst)
}

// Freeze blocks transfers in and out of the account.
func (l *Ledger) Freeze(account ids.ShortID, classID ids.ID, authority ids.ShortID) error {
	return l.setFrozen(account, classID, authority, true)
}

// Thaw lifts a freeze.
func (l *Ledger) Thaw(account ids.ShortID, classID ids.ID, authority ids.ShortID) error {
	return l.setFrozen(account, classID, authority, false)
}

func (l *Ledger) setFrozen(account ids.ShortID, classID ids.ID, authority ids.ShortID, frozen bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	class, err := l.getClass(classID)
	if err != nil {
		return err
	}
	if authority != class.FreezeAuthority {
		return ErrUnauthorized
	}

	acct, err := l.getAccount(account)
	if err != nil {
		return err
	}
	if acct.ValueClassID != classID {
		return ErrClassMismatch
	}

	acct.Frozen = frozen
	return l.putAccount(acct)
}

// Burn destroys amount from the account, reducing class supply. The
// authority must control the account; custodial and frozen accounts refuse
// to burn.
func (l *Ledger) Burn(account ids.ShortID, classID ids.ID, amount uint64, authority ids.ShortID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	class, err := l.getClass(classID)
	if err != nil {
		return err
	}
	acct, err := l.getAccount(account)
	if err != nil {
		return err
	}
	if acct.ValueClassID != classID {
		return ErrClassMismatch
	}
	if acct.Custodial {
		return ErrUnauthorized
	}
	if authority != acct.Authority {
		return ErrUnauthorized
	}
	if acct.Frozen {
		return ErrAccountFrozen
	}
	if acct.Balance < amount {
		return ErrInsufficientFunds
	}

	newSupply, err := safemath.Sub(class.Supply, amount)
	if err != nil {
		return err
	}
	acct.Balance -= amount
	class.Supply = newSupply

	if err := l.putAccount(acct); err != nil {
		return err
	}
	return l.putClass(class)
}

// SetAuthority replaces the class's mint or freeze authority. Only the
// current holder of that authority may hand it off.
func (l *Ledger) SetAuthority(classID ids.ID, kind AuthorityKind, current, next ids.ShortID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	class, err := l.getClass(classID)
	if err != nil {
		return err
	}

	switch kind {
	case AuthorityMint:
		if current != class.MintAuthority {
			return ErrUnauthorized
		}
		class.MintAuthority = next
	case AuthorityFreeze:
		if current != class.FreezeAuthority {
			return ErrUnauthorized
		}
		class.FreezeAuthority = next
	default:
		return ErrUnknownAuthority
	}

	return l.putClass(class)
}

// Class returns the value class definition.
func (l *Ledger) Class(classID ids.ID) (*ValueClass, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getClass(classID)
}

// Account returns the token account at addr.
func (l *Ledger) Account(addr ids.ShortID) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getAccount(addr)
}

// Balance returns the balance of the account at addr.
func (l *Ledger) Balance(addr ids.ShortID) (uint64, error) {
	acct, err := l.Account(addr)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (l *Ledger) nextClassSeq() (uint64, error) {
	var seq uint64
	seqBytes, err := l.db.Get(classSeqKey)
	switch {
	case err == nil:
		seq = binary.BigEndian.Uint64(seqBytes)
	case errors.Is(err, database.ErrNotFound):
	default:
		return 0, fmt.Errorf("failed to load class sequence: %w", err)
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, seq+1)
	if err := l.db.Put(classSeqKey, next); err != nil {
		return 0, err
	}
	return seq, nil
}

func (l *Ledger) getClass(classID ids.ID) (*ValueClass, error) {
	data, err := l.db.Get(append(classPrefix, classID[:]...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	class := &ValueClass{}
	if err := json.Unmarshal(data, class); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value class: %w", err)
	}
	return class, nil
}

func (l *Ledger) putClass(class *ValueClass) error {
	data, err := json.Marshal(class)
	if err != nil {
		return fmt.Errorf("failed to marshal value class: %w", err)
	}
	return l.db.Put(append(classPrefix, class.ID[:]...), data)
}

func (l *Ledger) getAccount(addr ids.ShortID) (*Account, error) {
	data, err := l.db.Get(append(accountPrefix, addr[:]...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	acct := &Account{}
	if err := json.Unmarshal(data, acct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token account: %w", err)
	}
	return acct, nil
}

func (l *Ledger) putAccount(acct *Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("failed to marshal token account: %w", err)
	}
	return l.db.Put(append(accountPrefix, acct.Address[:]...), data)
}

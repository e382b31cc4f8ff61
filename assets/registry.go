// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package assets keeps descriptive records for tokenized real-world assets.
// Each record is bound to a freshly created value class and owned by its
// creator; only the locator may change after creation.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/rwavm/token"
)

const (
	MaxNameLen    = 50
	MaxSymbolLen  = 10
	MaxLocatorLen = 200

	// RecordSeed is the domain tag for asset record keys.
	RecordSeed = "asset-metadata"
)

var (
	ErrDuplicateAsset = errors.New("asset already exists for this creator and name")
	ErrAssetNotFound  = errors.New("asset not found")
	ErrUnauthorized   = errors.New("updater is not the asset's creator")
	ErrNameTooLong    = fmt.Errorf("asset name exceeds %d bytes", MaxNameLen)
	ErrSymbolTooLong  = fmt.Errorf("asset symbol exceeds %d bytes", MaxSymbolLen)
	ErrLocatorTooLong = fmt.Errorf("asset locator exceeds %d bytes", MaxLocatorLen)

	recordPrefix = []byte("asset:")
)

// Record describes one tokenized asset.
type Record struct {
	Creator      ids.ShortID `json:"creator"`
	ValueClassID ids.ID      `json:"valueClassId"`
	Name         string      `json:"name"`
	Symbol       string      `json:"symbol"`
	Locator      string      `json:"locator"`
	Decimals     uint8       `json:"decimals"`
}

// RecordKey derives the unique record key for (creator, name).
func RecordKey(creator ids.ShortID, name string) []byte {
	key := make([]byte, 0, len(RecordSeed)+ids.ShortIDLen+len(name))
	key = append(key, RecordSeed...)
	key = append(key, creator[:]...)
	key = append(key, name...)
	return key
}

// Registry creates and maintains asset records.
type Registry struct {
	mu       sync.RWMutex
	db       database.Database
	registry token.Registry
	log      log.Logger
}

// NewRegistry creates an asset registry persisting to db and issuing value
// classes through registry.
func NewRegistry(db database.Database, registry token.Registry, logger log.Logger) *Registry {
	return &Registry{
		db:       db,
		registry: registry,
		log:      logger,
	}
}

// Create registers a new asset: one fresh value class with the creator as
// mint and freeze authority, the total supply minted to destination, and a
// record keyed by (creator, name). Fails if that key already exists.
func (r *Registry) Create(
	creator ids.ShortID,
	name, symbol, locator string,
	decimals uint8,
	totalSupply uint64,
	destination ids.ShortID,
) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case len(name) > MaxNameLen:
		return nil, ErrNameTooLong
	case len(symbol) > MaxSymbolLen:
		return nil, ErrSymbolTooLong
	case len(locator) > MaxLocatorLen:
		return nil, ErrLocatorTooLong
	}

	key := append(recordPrefix, RecordKey(creator, name)...)
	if _, err := r.db.Get(key); err == nil {
		return nil, ErrDuplicateAsset
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	classID, err := r.registry.CreateValueClass(decimals, creator, creator)
	if err != nil {
		return nil, err
	}

	if _, err := r.registry.Account(destination); errors.Is(err, token.ErrAccountNotFound) {
		if err := r.registry.OpenAccount(destination, classID, creator); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if err := r.registry.Mint(classID, destination, totalSupply, creator); err != nil {
		return nil, err
	}

	rec := &Record{
		Creator:      creator,
		ValueClassID: classID,
		Name:         name,
		Symbol:       symbol,
		Locator:      locator,
		Decimals:     decimals,
	}
	if err := r.putRecord(key, rec); err != nil {
		return nil, err
	}

	r.log.Info("created asset",
		"creator", creator,
		"name", name,
		"classID", classID,
		"totalSupply", totalSupply,
	)
	return rec, nil
}

// UpdateLocator replaces the record's locator. Only the creator may update.
func (r *Registry) UpdateLocator(updater, creator ids.ShortID, name, newLocator string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(newLocator) > MaxLocatorLen {
		return nil, ErrLocatorTooLong
	}

	key := append(recordPrefix, RecordKey(creator, name)...)
	rec, err := r.getRecord(key)
	if err != nil {
		return nil, err
	}
	if updater != rec.Creator {
		return nil, ErrUnauthorized
	}

	rec.Locator = newLocator
	if err := r.putRecord(key, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the record for (creator, name).
func (r *Registry) Get(creator ids.ShortID, name string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getRecord(append(recordPrefix, RecordKey(creator, name)...))
}

func (r *Registry) getRecord(key []byte) (*Record, error) {
	data, err := r.db.Get(key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset record: %w", err)
	}
	return rec, nil
}

func (r *Registry) putRecord(key []byte, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal asset record: %w", err)
	}
	return r.db.Put(key, data)
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle keeps last-write-wins price records. Updates are accepted
// from any caller; there is no authorization.
// TODO: integrate a signed price source before this leaves demonstrations.
package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/rwavm/utils/timer/mockable"
)

var (
	ErrFeedNotFound = errors.New("price feed not found")

	feedPrefix = []byte("price:")
)

// Record is the latest observed price for a symbol.
type Record struct {
	Symbol     string      `json:"symbol"`
	Price      uint64      `json:"price"`
	LastUpdate int64       `json:"lastUpdate"`
	Updater    ids.ShortID `json:"updater"`
}

// Feed stores price records keyed by symbol.
type Feed struct {
	mu  sync.RWMutex
	db  database.Database
	clk *mockable.Clock
}

// NewFeed creates a price feed over db.
func NewFeed(db database.Database, clk *mockable.Clock) *Feed {
	return &Feed{
		db:  db,
		clk: clk,
	}
}

// Update overwrites the price for symbol, stamping the current time.
func (f *Feed) Update(updater ids.ShortID, symbol string, price uint64) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := &Record{
		Symbol:     symbol,
		Price:      price,
		LastUpdate: f.clk.UnixSecs(),
		Updater:    updater,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price record: %w", err)
	}
	if err := f.db.Put(append(feedPrefix, symbol...), data); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the latest price record for symbol.
func (f *Feed) Get(symbol string) (*Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.db.Get(append(feedPrefix, symbol...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrFeedNotFound
		}
		return nil, err
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price record: %w", err)
	}
	return rec, nil
}

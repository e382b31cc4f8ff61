// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package assets

import (
	"strings"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rwavm/token"
)

var (
	creator = ids.ShortID{1}
	other   = ids.ShortID{2}
)

func newTestRegistry(t *testing.T) (*Registry, *token.Ledger) {
	tokens := token.NewLedger(memdb.New(), log.NewNoOpLogger())
	return NewRegistry(memdb.New(), tokens, log.NewNoOpLogger()), tokens
}

func TestCreate(t *testing.T) {
	registry, tokens := newTestRegistry(t)

	rec, err := registry.Create(creator, "Gold Reserve", "GOLD", "vault-7", 6, 1_000_000, creator)
	require.NoError(t, err)
	require.Equal(t, creator, rec.Creator)
	require.Equal(t, "Gold Reserve", rec.Name)
	require.Equal(t, "GOLD", rec.Symbol)
	require.Equal(t, "vault-7", rec.Locator)
	require.Equal(t, uint8(6), rec.Decimals)

	// One fresh value class, creator as both authorities, supply minted to
	// the destination.
	class, err := tokens.Class(rec.ValueClassID)
	require.NoError(t, err)
	require.Equal(t, creator, class.MintAuthority)
	require.Equal(t, creator, class.FreezeAuthority)
	require.Equal(t, uint64(1_000_000), class.Supply)

	balance, err := tokens.Balance(creator)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), balance)

	got, err := registry.Get(creator, "Gold Reserve")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestCreateDuplicate(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Create(creator, "Gold Reserve", "GOLD", "vault-7", 6, 1000, creator)
	require.NoError(t, err)

	_, err = registry.Create(creator, "Gold Reserve", "AU", "vault-8", 0, 1, creator)
	require.ErrorIs(t, err, ErrDuplicateAsset)

	// The same name under a different creator is a different asset.
	_, err = registry.Create(other, "Gold Reserve", "GOLD", "vault-9", 6, 1000, other)
	require.NoError(t, err)
}

func TestCreateFieldLimits(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Create(creator, strings.Repeat("n", MaxNameLen+1), "S", "l", 0, 1, creator)
	require.ErrorIs(t, err, ErrNameTooLong)

	_, err = registry.Create(creator, "n", strings.Repeat("s", MaxSymbolLen+1), "l", 0, 1, creator)
	require.ErrorIs(t, err, ErrSymbolTooLong)

	_, err = registry.Create(creator, "n", "s", strings.Repeat("l", MaxLocatorLen+1), 0, 1, creator)
	require.ErrorIs(t, err, ErrLocatorTooLong)
}

func TestUpdateLocator(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Create(creator, "Gold Reserve", "GOLD", "vault-7", 6, 1000, creator)
	require.NoError(t, err)

	_, err = registry.UpdateLocator(other, creator, "Gold Reserve", "vault-8")
	require.ErrorIs(t, err, ErrUnauthorized)

	rec, err := registry.UpdateLocator(creator, creator, "Gold Reserve", "vault-8")
	require.NoError(t, err)
	require.Equal(t, "vault-8", rec.Locator)

	// Everything except the locator is immutable.
	require.Equal(t, "GOLD", rec.Symbol)

	got, err := registry.Get(creator, "Gold Reserve")
	require.NoError(t, err)
	require.Equal(t, "vault-8", got.Locator)
}

func TestGetNotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Get(creator, "missing")
	require.ErrorIs(t, err, ErrAssetNotFound)
}

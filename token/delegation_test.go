// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

func TestDelegate(t *testing.T) {
	ledger := NewLedger(memdb.New(), log.NewNoOpLogger())
	classID, err := ledger.CreateValueClass(0, issuer, issuer)
	require.NoError(t, err)

	delegator := NewDelegator(ledger, log.NewNoOpLogger())

	del, err := delegator.Delegate(classID, AuthorityFreeze, issuer, alice)
	require.NoError(t, err)
	require.Equal(t, classID, del.ClassID)
	require.Equal(t, AuthorityFreeze, del.Kind)
	require.Equal(t, issuer, del.OldAuthority)
	require.Equal(t, alice, del.NewAuthority)

	class, err := ledger.Class(classID)
	require.NoError(t, err)
	require.Equal(t, alice, class.FreezeAuthority)
	require.Equal(t, issuer, class.MintAuthority)

	// The hand-off is single-shot: the old holder cannot delegate again.
	_, err = delegator.Delegate(classID, AuthorityFreeze, issuer, bob)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = delegator.Delegate(classID, AuthorityFreeze, alice, bob)
	require.NoError(t, err)
}

func TestDelegateUnknownClass(t *testing.T) {
	ledger := NewLedger(memdb.New(), log.NewNoOpLogger())
	delegator := NewDelegator(ledger, log.NewNoOpLogger())

	_, err := delegator.Delegate(ids.GenerateTestID(), AuthorityMint, issuer, alice)
	require.ErrorIs(t, err, ErrClassNotFound)
}

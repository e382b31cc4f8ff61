// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// Delegation records a completed authority hand-off for off-chain observers.
type Delegation struct {
	ClassID      ids.ID        `json:"classId"`
	Kind         AuthorityKind `json:"kind"`
	OldAuthority ids.ShortID   `json:"oldAuthority"`
	NewAuthority ids.ShortID   `json:"newAuthority"`
}

// Delegator transfers administrative control of a value class to a new
// holder. The hand-off is single-shot: once delegated, only the new holder
// can delegate again.
type Delegator struct {
	registry Registry
	log      log.Logger
}

// NewDelegator wires a delegation protocol over the given registry.
func NewDelegator(registry Registry, logger log.Logger) *Delegator {
	return &Delegator{
		registry: registry,
		log:      logger,
	}
}

// Delegate hands the mint or freeze authority of the class from current to
// next. Keeps no local state; the registry is the source of truth.
func (d *Delegator) Delegate(classID ids.ID, kind AuthorityKind, current, next ids.ShortID) (*Delegation, error) {
	if err := d.registry.SetAuthority(classID, kind, current, next); err != nil {
		return nil, err
	}

	d.log.Info("delegated authority",
		"classID", classID,
		"kind", kind.String(),
		"oldAuthority", current,
		"newAuthority", next,
	)
	return &Delegation{
		ClassID:      classID,
		Kind:         kind,
		OldAuthority: current,
		NewAuthority: next,
	}, nil
}

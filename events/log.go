// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events records an append-only log of committed operations for
// off-chain indexing. Entries are observational only: they carry no
// authorization weight and are durable exactly when the operation that
// emitted them commits.
package events

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
)

var (
	ErrEventNotFound = errors.New("event not found")

	entryPrefix = []byte("evt:")
	countKey    = []byte("evt-count")
)

// Event is a single operation record.
type Event struct {
	Seq       uint64      `serialize:"true" json:"seq"`
	Op        string      `serialize:"true" json:"op"`
	Actor     ids.ShortID `serialize:"true" json:"actor"`
	Amount    uint64      `serialize:"true" json:"amount,omitempty"`
	Timestamp int64       `serialize:"true" json:"timestamp"`
}

// Log is a sequence-keyed event log over a database. The sequence counter
// lives in the database, so an aborted operation leaves no trace of the
// entries it would have appended.
type Log struct {
	mu sync.Mutex
	db database.Database
}

// New opens the event log.
func New(db database.Database) *Log {
	return &Log{db: db}
}

// Append records ev at the next sequence number. The write becomes durable
// with the enclosing operation's commit.
func (l *Log) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	count, err := l.readCount()
	if err != nil {
		return err
	}

	ev.Seq = count
	data, err := Codec.Marshal(CodecVersion, &ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	seqKey := make([]byte, 8)
	binary.BigEndian.PutUint64(seqKey, ev.Seq)
	if err := l.db.Put(append(entryPrefix, seqKey...), data); err != nil {
		return err
	}

	countBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(countBytes, count+1)
	return l.db.Put(countKey, countBytes)
}

// Get returns the event at the given sequence number.
func (l *Log) Get(seq uint64) (*Event, error) {
	seqKey := make([]byte, 8)
	binary.BigEndian.PutUint64(seqKey, seq)

	data, err := l.db.Get(append(entryPrefix, seqKey...))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	ev := &Event{}
	if _, err := Codec.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}

// Len returns the number of recorded events.
func (l *Log) Len() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readCount()
}

// List returns events in sequence order, at most limit entries starting at
// offset. A limit of 0 means no limit.
func (l *Log) List(offset, limit uint64) ([]*Event, error) {
	count, err := l.Len()
	if err != nil {
		return nil, err
	}
	if offset >= count {
		return nil, nil
	}
	end := count
	if limit != 0 && limit < end-offset {
		end = offset + limit
	}

	evs := make([]*Event, 0, end-offset)
	for seq := offset; seq < end; seq++ {
		ev, err := l.Get(seq)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

func (l *Log) readCount() (uint64, error) {
	countBytes, err := l.db.Get(countKey)
	switch {
	case err == nil:
		return binary.BigEndian.Uint64(countBytes), nil
	case errors.Is(err, database.ErrNotFound):
		return 0, nil
	default:
		return 0, fmt.Errorf("failed to load event count: %w", err)
	}
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rwavm/utils/timer/mockable"
)

func newTestFeed() (*Feed, *mockable.Clock) {
	clk := &mockable.Clock{}
	clk.Set(time.Unix(1000, 0))
	return NewFeed(memdb.New(), clk), clk
}

func TestUpdateAndGet(t *testing.T) {
	feed, _ := newTestFeed()
	updater := ids.ShortID{1}

	rec, err := feed.Update(updater, "XAU", 2000)
	require.NoError(t, err)
	require.Equal(t, "XAU", rec.Symbol)
	require.Equal(t, uint64(2000), rec.Price)
	require.Equal(t, int64(1000), rec.LastUpdate)
	require.Equal(t, updater, rec.Updater)

	got, err := feed.Get("XAU")
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestUpdateLastWriteWins(t *testing.T) {
	feed, clk := newTestFeed()

	_, err := feed.Update(ids.ShortID{1}, "XAU", 2000)
	require.NoError(t, err)

	// Any caller may overwrite; the feed keeps only the latest record.
	clk.Set(time.Unix(1010, 0))
	_, err = feed.Update(ids.ShortID{2}, "XAU", 1950)
	require.NoError(t, err)

	got, err := feed.Get("XAU")
	require.NoError(t, err)
	require.Equal(t, uint64(1950), got.Price)
	require.Equal(t, int64(1010), got.LastUpdate)
	require.Equal(t, ids.ShortID{2}, got.Updater)
}

func TestGetNotFound(t *testing.T) {
	feed, _ := newTestFeed()

	_, err := feed.Get("XAG")
	require.ErrorIs(t, err, ErrFeedNotFound)
}

package depth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skarn/internal/common"
)

func order(instrument uuid.UUID, side common.Side, price common.Price, remaining common.Quantity) *common.Order {
	p := price
	return &common.Order{
		ID:            uuid.New(),
		InstrumentID:  instrument,
		Side:          side,
		LimitPrice:    &p,
		RemainingBase: remaining,
	}
}

func TestOrderAdded_AggregatesVolumeAndCount(t *testing.T) {
	instrument := uuid.New()
	tr := New(instrument)

	tr.OrderAdded(order(instrument, common.Bid, 99, 100))
	tr.OrderAdded(order(instrument, common.Bid, 99, 50))

	snap := tr.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, common.Price(99), snap.Bids[0].Price)
	assert.Equal(t, common.Quantity(150), snap.Bids[0].Volume)
	assert.Equal(t, 2, snap.Bids[0].OrderCount)
}

func TestOrderMatched_DecrementsVolumeOnly(t *testing.T) {
	instrument := uuid.New()
	tr := New(instrument)

	o := order(instrument, common.Ask, 100, 100)
	tr.OrderAdded(o)
	tr.OrderMatched(o, 40)

	snap := tr.Snapshot(10)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, common.Quantity(60), snap.Asks[0].Volume)
	assert.Equal(t, 1, snap.Asks[0].OrderCount)
}

func TestOrderMatched_FullFillRemovesLevelBeforeOrderRemoved(t *testing.T) {
	instrument := uuid.New()
	tr := New(instrument)

	o := order(instrument, common.Ask, 100, 100)
	tr.OrderAdded(o)
	tr.OrderMatched(o, 100)

	snap := tr.Snapshot(10)
	assert.Empty(t, snap.Asks, "volume reaching zero removes the level even before OrderRemoved")
}

func TestOrderRemoved_ClearsLevelWhenLastOrderLeaves(t *testing.T) {
	instrument := uuid.New()
	tr := New(instrument)

	a := order(instrument, common.Bid, 99, 100)
	b := order(instrument, common.Bid, 99, 50)
	tr.OrderAdded(a)
	tr.OrderAdded(b)

	tr.OrderRemoved(a)
	snap := tr.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, common.Quantity(50), snap.Bids[0].Volume)
	assert.Equal(t, 1, snap.Bids[0].OrderCount)

	tr.OrderRemoved(b)
	snap = tr.Snapshot(10)
	assert.Empty(t, snap.Bids)
}

func TestSnapshot_OrdersBySideNativeExtremumAndRespectsLimit(t *testing.T) {
	instrument := uuid.New()
	tr := New(instrument)

	tr.OrderAdded(order(instrument, common.Bid, 99, 10))
	tr.OrderAdded(order(instrument, common.Bid, 98, 10))
	tr.OrderAdded(order(instrument, common.Bid, 97, 10))
	tr.OrderAdded(order(instrument, common.Ask, 101, 10))
	tr.OrderAdded(order(instrument, common.Ask, 102, 10))

	snap := tr.Snapshot(2)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, common.Price(99), snap.Bids[0].Price)
	assert.Equal(t, common.Price(98), snap.Bids[1].Price)

	require.Len(t, snap.Asks, 2)
	assert.Equal(t, common.Price(101), snap.Asks[0].Price)
	assert.Equal(t, common.Price(102), snap.Asks[1].Price)
}

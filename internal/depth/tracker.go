// Package depth maintains an aggregated (price -> volume, order_count) view
// of each side of an order book, so a snapshot or L1/L2 event can be built
// without walking the book's FIFO queues.
//
// Grounded on the same tidwall/btree approach as internal/book, mirroring
// the teacher's use of one ordered structure per side; generalized to
// common.Price/common.Quantity and split out as its own component because
// spec.md §4.3 gives it an independent contract (order_added/order_removed/
// order_matched/snapshot) driven by the engine rather than by direct book
// mutation.
package depth

import (
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"skarn/internal/common"
)

// Level is one aggregated price level.
type Level struct {
	Price      common.Price
	Volume     common.Quantity
	OrderCount int
}

type levelTree = btree.BTreeG[*Level]

// Tracker maintains aggregated depth for one instrument. It is not safe for
// concurrent use; like the order book it belongs to, it is touched only by
// the owning engine's worker.
type Tracker struct {
	InstrumentID uuid.UUID

	bids *levelTree // descending
	asks *levelTree // ascending
}

// New creates an empty tracker for one instrument.
func New(instrumentID uuid.UUID) *Tracker {
	return &Tracker{
		InstrumentID: instrumentID,
		bids: btree.NewBTreeG(func(a, b *Level) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewBTreeG(func(a, b *Level) bool {
			return a.Price < b.Price
		}),
	}
}

func (t *Tracker) treeFor(side common.Side) *levelTree {
	if side == common.Bid {
		return t.bids
	}
	return t.asks
}

// OrderAdded records a newly resting order: adds its remaining quantity to
// its level's volume and increments that level's order_count, creating the
// level if it didn't already exist.
func (t *Tracker) OrderAdded(order *common.Order) {
	if order.LimitPrice == nil {
		return
	}
	tree := t.treeFor(order.Side)
	level, ok := tree.Get(&Level{Price: *order.LimitPrice})
	if !ok {
		level = &Level{Price: *order.LimitPrice}
		tree.Set(level)
	}
	level.Volume += order.RemainingBase
	level.OrderCount++
}

// OrderMatched records a partial or full fill against a resting order:
// decrements its level's volume by the matched quantity. order_count is
// unchanged until OrderRemoved reports the order left the book entirely,
// except that a level whose volume reaches zero is removed at once.
func (t *Tracker) OrderMatched(order *common.Order, matchedQuantity common.Quantity) {
	if order.LimitPrice == nil {
		return
	}
	tree := t.treeFor(order.Side)
	level, ok := tree.Get(&Level{Price: *order.LimitPrice})
	if !ok {
		return
	}
	if matchedQuantity > level.Volume {
		level.Volume = 0
	} else {
		level.Volume -= matchedQuantity
	}
	t.removeLevelIfEmpty(tree, level)
}

// OrderRemoved records that order has left the book (cancelled, or fully
// filled and evicted by the engine): decrements the level's remaining
// volume by the order's remaining_base and its order_count by one, removing
// the level entirely once either reaches zero.
func (t *Tracker) OrderRemoved(order *common.Order) {
	if order.LimitPrice == nil {
		return
	}
	tree := t.treeFor(order.Side)
	level, ok := tree.Get(&Level{Price: *order.LimitPrice})
	if !ok {
		return
	}
	if order.RemainingBase > level.Volume {
		level.Volume = 0
	} else {
		level.Volume -= order.RemainingBase
	}
	if level.OrderCount > 0 {
		level.OrderCount--
	}
	t.removeLevelIfEmpty(tree, level)
}

// VolumeAt returns the current aggregated volume resting at price on side,
// or 0 if no level exists there (e.g. the level was just fully consumed).
// Callers use this to build an L2_DELTA event's "new volume" field, where 0
// also signals the level was removed.
func (t *Tracker) VolumeAt(side common.Side, price common.Price) common.Quantity {
	level, ok := t.treeFor(side).Get(&Level{Price: price})
	if !ok {
		return 0
	}
	return level.Volume
}

func (t *Tracker) removeLevelIfEmpty(tree *levelTree, level *Level) {
	if level.OrderCount == 0 || level.Volume == 0 {
		tree.Delete(level)
	}
}

// LevelSnapshot is one (price, volume, order_count) row in a Snapshot.
type LevelSnapshot struct {
	Price      common.Price
	Volume     common.Quantity
	OrderCount int
}

// Snapshot is an ordered, timestamped view of both sides, each truncated to
// at most limit levels.
type Snapshot struct {
	InstrumentID uuid.UUID
	Bids         []LevelSnapshot
	Asks         []LevelSnapshot
	Timestamp    time.Time
}

// Snapshot builds a Snapshot with up to limit levels per side, ordered by
// matching priority (best first). O(limit).
func (t *Tracker) Snapshot(limit int) Snapshot {
	return Snapshot{
		InstrumentID: t.InstrumentID,
		Bids:         collect(t.bids, limit),
		Asks:         collect(t.asks, limit),
		Timestamp:    time.Now(),
	}
}

func collect(tree *levelTree, limit int) []LevelSnapshot {
	out := make([]LevelSnapshot, 0, limit)
	tree.Ascend(nil, func(level *Level) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, LevelSnapshot{Price: level.Price, Volume: level.Volume, OrderCount: level.OrderCount})
		return true
	})
	return out
}

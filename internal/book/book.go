// Package book implements the per-instrument bid/ask ladder: a FIFO queue of
// orders at each price level, ordered so the side-native extremum (highest
// bid, lowest ask) is always reachable in O(log L) where L is the number of
// distinct price levels on a side.
//
// Grounded on the teacher's internal/engine/orderbook.go, which used
// tidwall/btree over float64 prices for the same purpose; generalized here
// to the spec's signed 64-bit Price / unsigned 64-bit Quantity types, and to
// a doubly-linked FIFO queue per level (container/list) so cancelling an
// order that isn't at the front of its level is O(1) given the id index,
// rather than the teacher's O(level length) slice-splice.
package book

import (
	"container/list"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"skarn/internal/common"
	"skarn/internal/errs"
)

// PriceLevel is a (price, FIFO queue, total volume) triple. The queue is
// empty iff the level has been removed from its side.
type PriceLevel struct {
	Price  common.Price
	Orders *list.List // of *common.Order, front = oldest (next to match)
	Volume common.Quantity
}

func newPriceLevel(price common.Price) *PriceLevel {
	return &PriceLevel{Price: price, Orders: list.New()}
}

type levels = btree.BTreeG[*PriceLevel]

// indexEntry locates an indexed order: side and price find its level, and
// elem is its node in that level's FIFO queue, so removal needs no scan.
type indexEntry struct {
	side  common.Side
	price common.Price
	elem  *list.Element
}

// OrderBook is one instrument's bid/ask ladder. It is owned exclusively by
// its matching engine; nothing outside that engine's worker goroutine may
// touch it (spec.md §5).
type OrderBook struct {
	InstrumentID uuid.UUID

	bids *levels // sorted descending by price
	asks *levels // sorted ascending by price

	index map[uuid.UUID]indexEntry

	bestBid *common.Price
	bestAsk *common.Price
}

// New creates an empty order book for one instrument.
func New(instrumentID uuid.UUID) *OrderBook {
	return &OrderBook{
		InstrumentID: instrumentID,
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
		index: make(map[uuid.UUID]indexEntry),
	}
}

func (b *OrderBook) levelsFor(side common.Side) *levels {
	if side == common.Bid {
		return b.bids
	}
	return b.asks
}

// AddOrder inserts an order at the back of its price level's FIFO queue.
//
// Fails with errs.ErrWrongInstrument if the order's instrument differs from
// this book's, errs.ErrNoLimitPrice if the order carries no limit price, and
// errs.ErrDuplicateOrder if an order with the same id is already indexed
// (spec.md §9, Open Question: duplicate ids are rejected, not replaced).
func (b *OrderBook) AddOrder(order *common.Order) error {
	if order.InstrumentID != b.InstrumentID {
		return errs.ErrWrongInstrument
	}
	if order.LimitPrice == nil {
		return errs.ErrNoLimitPrice
	}
	if _, exists := b.index[order.ID]; exists {
		return errs.ErrDuplicateOrder
	}

	price := *order.LimitPrice
	lvls := b.levelsFor(order.Side)

	level, ok := lvls.Get(&PriceLevel{Price: price})
	if !ok {
		level = newPriceLevel(price)
		lvls.Set(level)
	}

	elem := level.Orders.PushBack(order)
	level.Volume += order.RemainingBase
	b.index[order.ID] = indexEntry{side: order.Side, price: price, elem: elem}

	b.improveBest(order.Side, price)
	return nil
}

// RemoveOrder removes and returns the order identified by id.
//
// Fails with errs.ErrOrderNotFound if the id is unknown.
func (b *OrderBook) RemoveOrder(id uuid.UUID) (*common.Order, error) {
	entry, ok := b.index[id]
	if !ok {
		return nil, errs.ErrOrderNotFound
	}
	delete(b.index, id)

	lvls := b.levelsFor(entry.side)
	level, ok := lvls.Get(&PriceLevel{Price: entry.price})
	if !ok {
		// The index and the tree disagreeing is a bug, not a caller error.
		return nil, errs.ErrOrderNotFound
	}

	order := entry.elem.Value.(*common.Order)
	level.Orders.Remove(entry.elem)
	level.Volume -= order.RemainingBase

	if level.Orders.Len() == 0 {
		lvls.Delete(level)
		if entry.side == common.Bid && b.bestBid != nil && *b.bestBid == entry.price {
			b.recomputeBest(common.Bid)
		} else if entry.side == common.Ask && b.bestAsk != nil && *b.bestAsk == entry.price {
			b.recomputeBest(common.Ask)
		}
	}
	return order, nil
}

// PeekBest returns the front order of the best price level on side, or
// (nil, false) if that side is empty.
func (b *OrderBook) PeekBest(side common.Side) (*common.Order, bool) {
	lvls := b.levelsFor(side)
	level, ok := lvls.Min()
	if !ok || level.Orders.Len() == 0 {
		return nil, false
	}
	return level.Orders.Front().Value.(*common.Order), true
}

// LevelView is a read-only snapshot of one price level, safe to hand to a
// caller outside the owning worker.
type LevelView struct {
	Price      common.Price
	Volume     common.Quantity
	OrderCount int
}

// BestOpposingLevels returns up to limit best price levels on the opposite
// side of side, ordered by matching priority, for callers that want a
// multi-level view without driving the matching loop themselves.
func (b *OrderBook) BestOpposingLevels(side common.Side, limit int) []LevelView {
	lvls := b.levelsFor(side.Opposite())
	views := make([]LevelView, 0, limit)
	lvls.Ascend(nil, func(level *PriceLevel) bool {
		if len(views) >= limit {
			return false
		}
		views = append(views, LevelView{Price: level.Price, Volume: level.Volume, OrderCount: level.Orders.Len()})
		return true
	})
	return views
}

// BestBid returns the best (highest) resting bid price, if any.
func (b *OrderBook) BestBid() (common.Price, bool) {
	if b.bestBid == nil {
		return 0, false
	}
	return *b.bestBid, true
}

// BestAsk returns the best (lowest) resting ask price, if any.
func (b *OrderBook) BestAsk() (common.Price, bool) {
	if b.bestAsk == nil {
		return 0, false
	}
	return *b.bestAsk, true
}

// Spread returns BestAsk-BestBid, or false if either side is empty.
func (b *OrderBook) Spread() (common.Price, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

// VolumeAtPrice returns the total resting volume at (side, price).
func (b *OrderBook) VolumeAtPrice(side common.Side, price common.Price) common.Quantity {
	level, ok := b.levelsFor(side).Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return level.Volume
}

// OrderCountAtPrice returns the number of resting orders at (side, price).
func (b *OrderBook) OrderCountAtPrice(side common.Side, price common.Price) int {
	level, ok := b.levelsFor(side).Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return level.Orders.Len()
}

// Uncrossed reports whether best_bid < best_ask, or one side is empty —
// the invariant that must hold after every public operation.
func (b *OrderBook) Uncrossed() bool {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return true
	}
	return bid < ask
}

func (b *OrderBook) improveBest(side common.Side, price common.Price) {
	switch side {
	case common.Bid:
		if b.bestBid == nil || price > *b.bestBid {
			p := price
			b.bestBid = &p
		}
	case common.Ask:
		if b.bestAsk == nil || price < *b.bestAsk {
			p := price
			b.bestAsk = &p
		}
	}
}

func (b *OrderBook) recomputeBest(side common.Side) {
	lvls := b.levelsFor(side)
	level, ok := lvls.Min()
	if !ok {
		if side == common.Bid {
			b.bestBid = nil
		} else {
			b.bestAsk = nil
		}
		return
	}
	p := level.Price
	if side == common.Bid {
		b.bestBid = &p
	} else {
		b.bestAsk = &p
	}
}

// Package engine implements the per-instrument matching engine: it decides
// what trades result from an incoming order under strict price-time
// priority, keeping the order book and depth tracker it owns consistent at
// every externally visible boundary.
//
// Grounded on the teacher's internal/engine/{engine,orderbook}.go PlaceOrder
// / Match / handleMarket / handleLimit sweep, restructured around
// internal/book's btree+FIFO ladder and generalized from float64 prices to
// the spec's fixed-point common.Price/common.Quantity, and from the
// teacher's two order types (Limit/Market) to four (Limit/Market/Stop/
// StopLimit) crossed with two time-in-force values (GTC/IOC).
package engine

import (
	"time"

	"github.com/google/uuid"

	"skarn/internal/book"
	"skarn/internal/common"
	"skarn/internal/depth"
	"skarn/internal/errs"
)

// MatchResult is the outcome of one ProcessOrder call: the (mutated) taker
// order, the trades produced in the order they were produced, and the
// resting makers whose state changed.
type MatchResult struct {
	Taker         *common.Order
	Trades        []common.Trade
	ChangedOrders []*common.Order
}

// Engine is one instrument's matching engine. It exclusively owns the book
// and the depth tracker beneath it; nothing outside the owning worker may
// touch either.
type Engine struct {
	InstrumentID uuid.UUID

	book  *book.OrderBook
	depth *depth.Tracker

	nextSequence uint64
}

// New creates an empty matching engine for one instrument.
func New(instrumentID uuid.UUID) *Engine {
	return &Engine{
		InstrumentID: instrumentID,
		book:         book.New(instrumentID),
		depth:        depth.New(instrumentID),
	}
}

// GetDepth returns an aggregated snapshot of the top limit levels of each
// side, sorted by matching priority. Read-only.
func (e *Engine) GetDepth(limit int) depth.Snapshot {
	return e.depth.Snapshot(limit)
}

// LevelVolume returns the current aggregated volume resting at price on
// side, or 0 if that level no longer exists. Used to build L2_DELTA events
// after a command has mutated the book.
func (e *Engine) LevelVolume(side common.Side, price common.Price) common.Quantity {
	return e.depth.VolumeAt(side, price)
}

// validate enforces the type-specific preconditions from spec.md §4.2 before
// an order is accepted for matching.
func validate(order *common.Order) error {
	switch order.Type {
	case common.Limit:
		if order.LimitPrice == nil {
			return errs.InvalidOrder("limit_order_without_limit_price")
		}
	case common.Market:
		// No price preconditions; a market order matches at any price.
	case common.Stop:
		if order.TriggerPrice == nil {
			return errs.InvalidOrder("stop_order_without_trigger_price")
		}
	case common.StopLimit:
		if order.TriggerPrice == nil {
			return errs.InvalidOrder("stop_limit_order_without_trigger_price")
		}
		if order.LimitPrice == nil {
			return errs.InvalidOrder("stop_limit_order_without_limit_price")
		}
	}
	return nil
}

// ProcessOrder accepts an order, assigns it a sequence id, and runs it
// through matching per spec.md §4.2's per-type/TIF routing table.
//
// Fails with errs.ErrWrongInstrument, an errs.InvalidOrder(reason), or
// errs.ErrInsufficientLiquidity (market orders only).
func (e *Engine) ProcessOrder(order *common.Order) (MatchResult, error) {
	if order.InstrumentID != e.InstrumentID {
		return MatchResult{}, errs.ErrWrongInstrument
	}
	if err := validate(order); err != nil {
		return MatchResult{}, err
	}
	// A zero-quantity taker can never produce a trade; reject it before it
	// consumes a sequence id (Open Question decision, see DESIGN.md).
	if order.Type != common.Stop && order.Type != common.StopLimit && order.RemainingBase == 0 {
		return MatchResult{}, errs.InvalidOrder("zero_quantity")
	}

	e.nextSequence++
	order.SequenceID = e.nextSequence
	order.UpdatedAt = time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = order.UpdatedAt
	}

	switch order.Type {
	case common.Stop, common.StopLimit:
		order.Status = common.WaitingTrigger
		return MatchResult{Taker: order}, nil
	}

	return e.match(order)
}

// match runs the sweep described in spec.md §4.2 step 3: it consumes the
// best opposing orders while they're acceptable to the taker, collecting
// trades and changed makers. Each maker is detached from the book as it is
// matched so PeekBest sees the next order in line; after the loop the depth
// tracker is told which makers left the book, a partially-filled maker is
// put back at the front of its level, and then the taker's remainder is
// re-inserted if any. All of this runs on the owning worker, so no caller
// observes the book half-updated.
func (e *Engine) match(taker *common.Order) (MatchResult, error) {
	opposite := taker.Side.Opposite()

	var limitPrice common.Price
	if taker.Type == common.Limit {
		limitPrice = *taker.LimitPrice
	}

	var trades []common.Trade
	var changed []*common.Order
	toRemove := make(map[uuid.UUID]struct{})

	for taker.RemainingBase > 0 {
		maker, ok := e.book.PeekBest(opposite)
		if !ok {
			break
		}

		makerPrice := *maker.LimitPrice
		if taker.Type == common.Limit {
			if taker.Side == common.Bid && makerPrice > limitPrice {
				break
			}
			if taker.Side == common.Ask && makerPrice < limitPrice {
				break
			}
		}

		// The maker is committed to this trade; detach it from the book's
		// FIFO now so the next PeekBest sees the next order in line.
		if _, err := e.book.RemoveOrder(maker.ID); err != nil {
			break
		}

		matched := min(taker.RemainingBase, maker.RemainingBase)
		quote := common.Quantity(int64(matched) * int64(makerPrice))

		trades = append(trades, common.Trade{
			ID:           uuid.New(),
			InstrumentID: e.InstrumentID,
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
			BaseAmount:   matched,
			QuoteAmount:  quote,
			Price:        makerPrice,
			Timestamp:    time.Now(),
		})

		e.depth.OrderMatched(maker, matched)

		taker.RemainingBase -= matched
		taker.FilledBase += matched
		taker.FilledQuote += quote
		if taker.RemainingBase > 0 && taker.Status == common.Submitted {
			taker.Status = common.PartiallyFilled
		}

		maker.RemainingBase -= matched
		maker.FilledBase += matched
		maker.FilledQuote += quote
		maker.UpdatedAt = time.Now()

		if maker.RemainingBase == 0 {
			maker.Status = common.Filled
			toRemove[maker.ID] = struct{}{}
		} else {
			maker.Status = common.PartiallyFilled
		}
		changed = append(changed, maker)

		if taker.RemainingBase == 0 {
			taker.Status = common.Filled
			break
		}
	}

	// Batched phase: removals first. Fully-consumed makers were already
	// removed from the book above (to free PeekBest); here we only need to
	// reflect their departure in the depth tracker. A partially-filled maker
	// (at most one, the last matched) was detached too: it goes back on the
	// book, and its level is rotated until it is at the front again so it
	// keeps its time priority. The depth tracker still counts it.
	for _, m := range changed {
		if _, done := toRemove[m.ID]; done {
			e.depth.OrderRemoved(m)
			continue
		}
		if err := e.book.AddOrder(m); err != nil {
			return MatchResult{}, err
		}
		for front, ok := e.book.PeekBest(opposite); ok && front.ID != m.ID; front, ok = e.book.PeekBest(opposite) {
			if _, err := e.book.RemoveOrder(front.ID); err != nil {
				break
			}
			_ = e.book.AddOrder(front)
		}
	}

	// Re-insertion phase.
	switch taker.TIF {
	case common.GTC:
		if taker.RemainingBase > 0 && taker.Type == common.Limit {
			if err := e.book.AddOrder(taker); err != nil {
				return MatchResult{}, err
			}
			e.depth.OrderAdded(taker)
			if taker.Status == common.Submitted {
				taker.Status = common.Unfilled
			}
		}
	case common.IOC:
		if taker.RemainingBase > 0 && taker.Type != common.Market {
			if taker.FilledBase > 0 {
				taker.Status = common.PartiallyFilledCancelled
			} else {
				taker.Status = common.Cancelled
			}
		}
	}

	if taker.Type == common.Market {
		if taker.RemainingBase > 0 {
			if len(trades) == 0 {
				return MatchResult{}, errs.ErrInsufficientLiquidity
			}
			if taker.FilledBase > 0 {
				taker.Status = common.PartiallyFilledCancelled
			} else {
				taker.Status = common.Cancelled
			}
		}
	}

	return MatchResult{Taker: taker, Trades: trades, ChangedOrders: changed}, nil
}

// CancelOrder removes a resting order, marks it Cancelled (or
// PartiallyFilledCancelled if it was already partially filled), and returns
// it. Fails with errs.ErrOrderNotFound if the order isn't resting.
func (e *Engine) CancelOrder(orderID uuid.UUID) (*common.Order, error) {
	order, err := e.book.RemoveOrder(orderID)
	if err != nil {
		return nil, err
	}
	e.depth.OrderRemoved(order)

	if order.FilledBase > 0 {
		order.Status = common.PartiallyFilledCancelled
	} else {
		order.Status = common.Cancelled
	}
	order.UpdatedAt = time.Now()
	return order, nil
}

// BestBid returns the book's best bid, if any.
func (e *Engine) BestBid() (common.Price, bool) {
	return e.book.BestBid()
}

// BestAsk returns the book's best ask, if any.
func (e *Engine) BestAsk() (common.Price, bool) {
	return e.book.BestAsk()
}

func min[T ~uint64](a, b T) T {
	if a < b {
		return a
	}
	return b
}

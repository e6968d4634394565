// Package worker runs one matching engine on a dedicated goroutine: commands
// for its instrument are processed strictly in send order, and every event a
// command produces is published to the bus before the worker looks at its
// next command (spec.md §5).
//
// Grounded on the teacher's internal/worker.go tomb-supervised pool loop,
// narrowed from an N-worker pool pulling generic tasks to exactly one
// goroutine per instrument pulling typed Commands, since spec.md requires
// single-threaded-per-instrument execution rather than a shared pool.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"skarn/internal/common"
	"skarn/internal/engine"
	"skarn/internal/errs"
	"skarn/internal/events"
)

// DefaultChannelCapacity bounds the worker's command channel. Documented
// per spec.md §5's requirement that any bound be explicit: a sender that
// outruns this worker blocks rather than growing memory without limit.
const DefaultChannelCapacity = 256

// commandKind tags a Command's payload without needing a type switch at
// every call site.
type commandKind uint8

const (
	cmdPlaceOrder commandKind = iota
	cmdCancelOrder
	cmdSnapshot
	cmdTradingStatus
)

// command is one unit of work sent to a Worker. The worker sends the
// command's result on reply once it (and any events) have been fully
// applied, so a synchronous caller can await completion.
type command struct {
	kind    commandKind
	order   *common.Order
	orderID uuid.UUID
	limit   int
	reply   chan error
}

// Worker owns one instrument's matching engine and the single goroutine
// allowed to touch it. Commands are consumed from a bounded channel in
// strict FIFO order.
type Worker struct {
	InstrumentID uuid.UUID

	engine *engine.Engine
	bus    *events.Bus
	cmds   chan command

	t tomb.Tomb
}

// New creates a worker for instrumentID, publishing events to bus. It does
// not start running until Start is called.
func New(instrumentID uuid.UUID, bus *events.Bus, channelCapacity int) *Worker {
	if channelCapacity <= 0 {
		channelCapacity = DefaultChannelCapacity
	}
	return &Worker{
		InstrumentID: instrumentID,
		engine:       engine.New(instrumentID),
		bus:          bus,
		cmds:         make(chan command, channelCapacity),
	}
}

// Start launches the worker's run loop under a tomb. The worker finishes
// whatever command it is currently processing, then terminates when the
// tomb is killed; already-queued commands are dropped (spec.md §5).
func (w *Worker) Start(ctx context.Context) {
	w.t.Go(func() error {
		return w.run(ctx)
	})
}

// Stop signals the worker to exit after its current command and waits for
// it to finish.
func (w *Worker) Stop() error {
	w.t.Kill(nil)
	return w.t.Wait()
}

func (w *Worker) run(ctx context.Context) error {
	for {
		select {
		case <-w.t.Dying():
			return nil
		case cmd := <-w.cmds:
			cmd.reply <- w.handle(cmd)
		}
	}
}

// PlaceOrder submits order for matching and blocks until the resulting
// events have been published.
func (w *Worker) PlaceOrder(ctx context.Context, order *common.Order) error {
	return w.send(ctx, command{kind: cmdPlaceOrder, order: order})
}

// CancelOrder submits a cancel request and blocks until it completes.
func (w *Worker) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return w.send(ctx, command{kind: cmdCancelOrder, orderID: orderID})
}

// RequestSnapshot publishes a SNAPSHOT event with up to limit levels per
// side.
func (w *Worker) RequestSnapshot(ctx context.Context, limit int) error {
	return w.send(ctx, command{kind: cmdSnapshot, limit: limit})
}

func (w *Worker) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case w.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.t.Dying():
		return errs.ErrOrderbookHalted
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) handle(cmd command) error {
	switch cmd.kind {
	case cmdPlaceOrder:
		return w.handlePlaceOrder(cmd.order)
	case cmdCancelOrder:
		return w.handleCancelOrder(cmd.orderID)
	case cmdSnapshot:
		w.handleSnapshot(cmd.limit)
		return nil
	default:
		return nil
	}
}

func (w *Worker) handlePlaceOrder(order *common.Order) error {
	result, err := w.engine.ProcessOrder(order)
	if err != nil {
		w.publishReject(order, err)
		return err
	}

	makerByID := make(map[uuid.UUID]*common.Order, len(result.ChangedOrders))
	for _, maker := range result.ChangedOrders {
		makerByID[maker.ID] = maker
	}

	for _, trade := range result.Trades {
		maker := makerByID[trade.MakerOrderID]
		w.bus.Publish(events.MatchEvent{
			InstrumentID: w.InstrumentID,
			TakerOrderID: trade.TakerOrderID,
			MakerOrderID: trade.MakerOrderID,
			TakerAccount: result.Taker.AccountID,
			MakerAccount: maker.AccountID,
			TakerStatus:  result.Taker.Status,
			MakerStatus:  maker.Status,
			BaseAmount:   trade.BaseAmount,
			QuoteAmount:  trade.QuoteAmount,
			Price:        trade.Price,
			SequenceID:   result.Taker.SequenceID,
			Timestamp:    trade.Timestamp,
		})
	}
	for _, maker := range result.ChangedOrders {
		w.bus.Publish(events.OrderUpdateEvent{
			OrderID:       maker.ID,
			InstrumentID:  w.InstrumentID,
			AccountID:     maker.AccountID,
			FilledBase:    maker.FilledBase,
			FilledQuote:   maker.FilledQuote,
			RemainingBase: maker.RemainingBase,
			Status:        maker.Status,
			SequenceID:    maker.SequenceID,
			Timestamp:     time.Now(),
		})
	}

	w.bus.Publish(events.OrderAckEvent{
		OrderID:      result.Taker.ID,
		InstrumentID: w.InstrumentID,
		Status:       result.Taker.Status,
		SequenceID:   result.Taker.SequenceID,
		Timestamp:    time.Now(),
	})

	w.publishL2Deltas(touchedLevels(result.Taker, result.ChangedOrders))
	w.publishL1()
	log.Debug().Str("instrument", w.InstrumentID.String()).Str("order", order.ID.String()).
		Int("trades", len(result.Trades)).Msg("order processed")
	return nil
}

func (w *Worker) handleCancelOrder(orderID uuid.UUID) error {
	order, err := w.engine.CancelOrder(orderID)
	if err != nil {
		return err
	}
	w.bus.Publish(events.OrderCancelEvent{
		OrderID:      order.ID,
		InstrumentID: w.InstrumentID,
		FilledBase:   order.FilledBase,
		FilledQuote:  order.FilledQuote,
		Remaining:    order.RemainingBase,
		SequenceID:   order.SequenceID,
		Timestamp:    time.Now(),
	})
	w.publishL2Deltas(touchedLevels(order, nil))
	w.publishL1()
	return nil
}

// levelKey identifies one (side, price) level for deduplicating L2_DELTA
// publication when several orders in one command touch the same level.
type levelKey struct {
	Side  common.Side
	Price common.Price
}

// touchedLevels collects the distinct price levels a command's taker and
// changed makers rested on or were removed from, in first-seen order. Only
// limit-priced orders occupy a level; market orders never do.
func touchedLevels(taker *common.Order, changed []*common.Order) []levelKey {
	seen := make(map[levelKey]struct{})
	var keys []levelKey
	add := func(side common.Side, price *common.Price) {
		if price == nil {
			return
		}
		k := levelKey{Side: side, Price: *price}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for _, maker := range changed {
		add(maker.Side, maker.LimitPrice)
	}
	if taker.Type == common.Limit {
		add(taker.Side, taker.LimitPrice)
	}
	return keys
}

// publishL2Deltas reports the post-command volume of every touched level;
// a volume of 0 tells subscribers the level was removed entirely.
func (w *Worker) publishL2Deltas(keys []levelKey) {
	for _, k := range keys {
		w.bus.Publish(events.L2DeltaEvent{
			InstrumentID: w.InstrumentID,
			Side:         k.Side,
			Price:        k.Price,
			NewVolume:    w.engine.LevelVolume(k.Side, k.Price),
			Timestamp:    time.Now(),
		})
	}
}

func (w *Worker) handleSnapshot(limit int) {
	if limit <= 0 {
		limit = 10
	}
	snap := w.engine.GetDepth(limit)

	bids := make([]events.SnapshotLevel, len(snap.Bids))
	for i, l := range snap.Bids {
		bids[i] = events.SnapshotLevel{Price: l.Price, Volume: l.Volume, OrderCount: l.OrderCount}
	}
	asks := make([]events.SnapshotLevel, len(snap.Asks))
	for i, l := range snap.Asks {
		asks[i] = events.SnapshotLevel{Price: l.Price, Volume: l.Volume, OrderCount: l.OrderCount}
	}

	w.bus.Publish(events.SnapshotEvent{
		InstrumentID: w.InstrumentID,
		Bids:         bids,
		Asks:         asks,
		Timestamp:    snap.Timestamp,
	})
}

func (w *Worker) publishL1() {
	var bestBid, bestAsk *common.Price
	if p, ok := w.engine.BestBid(); ok {
		bestBid = &p
	}
	if p, ok := w.engine.BestAsk(); ok {
		bestAsk = &p
	}
	w.bus.Publish(events.L1UpdateEvent{
		InstrumentID: w.InstrumentID,
		BestBid:      bestBid,
		BestAsk:      bestAsk,
		Timestamp:    time.Now(),
	})
}

func (w *Worker) publishReject(order *common.Order, err error) {
	code := ""
	if coreErr, ok := err.(*errs.CoreError); ok {
		code = string(coreErr.Code)
	}
	w.bus.Publish(events.OrderRejectEvent{
		OrderID:      order.ID,
		InstrumentID: w.InstrumentID,
		Reason:       err.Error(),
		ErrorCode:    code,
		SequenceID:   order.SequenceID,
		Timestamp:    time.Now(),
	})
}

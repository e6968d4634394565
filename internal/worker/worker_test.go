package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skarn/internal/common"
	"skarn/internal/events"
)

func newTestWorker(t *testing.T) (*Worker, *events.Bus, uuid.UUID) {
	t.Helper()
	instrument := uuid.New()
	bus := events.NewBus(64, nil)
	w := New(instrument, bus, 16)
	w.Start(context.Background())
	t.Cleanup(func() {
		require.NoError(t, w.Stop())
	})
	return w, bus, instrument
}

func limitOrder(instrument uuid.UUID, side common.Side, price common.Price, qty common.Quantity) *common.Order {
	p := price
	return &common.Order{
		ID:            uuid.New(),
		InstrumentID:  instrument,
		Side:          side,
		Type:          common.Limit,
		TIF:           common.GTC,
		LimitPrice:    &p,
		BaseAmount:    qty,
		RemainingBase: qty,
	}
}

func TestWorker_PlaceOrderPublishesAckAndL1(t *testing.T) {
	w, bus, instrument := newTestWorker(t)
	sub := bus.Subscribe()

	order := limitOrder(instrument, common.Bid, 100, 10)
	require.NoError(t, w.PlaceOrder(context.Background(), order))

	var tags []events.Tag
	require.Eventually(t, func() bool {
		for {
			ev, _, ok := sub.Next()
			if !ok {
				return len(tags) >= 2
			}
			tags = append(tags, ev.EventTag())
		}
	}, time.Second, time.Millisecond)

	assert.Contains(t, tags, events.TagOrderAck)
	assert.Contains(t, tags, events.TagL1Update)
}

func TestWorker_CommandsProcessedInSendOrder(t *testing.T) {
	w, bus, instrument := newTestWorker(t)
	sub := bus.Subscribe()

	maker := limitOrder(instrument, common.Ask, 100, 50)
	require.NoError(t, w.PlaceOrder(context.Background(), maker))

	taker := limitOrder(instrument, common.Bid, 100, 50)
	require.NoError(t, w.PlaceOrder(context.Background(), taker))

	var matchSeen, ackSeen bool
	require.Eventually(t, func() bool {
		for {
			ev, _, ok := sub.Next()
			if !ok {
				break
			}
			switch ev.EventTag() {
			case events.TagMatch:
				matchSeen = true
			case events.TagOrderAck:
				ack := ev.(events.OrderAckEvent)
				if ack.OrderID == maker.ID {
					assert.False(t, matchSeen, "the maker's ack must precede the taker's match")
				}
				if ack.OrderID == taker.ID {
					ackSeen = true
					assert.True(t, matchSeen, "match event must precede the taker's final ack")
				}
			}
		}
		return matchSeen && ackSeen
	}, time.Second, time.Millisecond)
}

func TestWorker_PartialFillRestsAndPublishesL2Delta(t *testing.T) {
	w, bus, instrument := newTestWorker(t)
	sub := bus.Subscribe()

	maker := limitOrder(instrument, common.Ask, 100, 50)
	require.NoError(t, w.PlaceOrder(context.Background(), maker))

	taker := limitOrder(instrument, common.Bid, 100, 30)
	require.NoError(t, w.PlaceOrder(context.Background(), taker))

	var deltas []events.L2DeltaEvent
	require.Eventually(t, func() bool {
		for {
			ev, _, ok := sub.Next()
			if !ok {
				break
			}
			if d, isDelta := ev.(events.L2DeltaEvent); isDelta {
				deltas = append(deltas, d)
			}
		}
		return len(deltas) > 0
	}, time.Second, time.Millisecond)

	// The maker's own placement reports the ask level at 50 first; the
	// taker's command then reports it at 20.
	found := false
	var latest common.Quantity
	for _, d := range deltas {
		if d.Side == common.Ask && d.Price == 100 {
			latest = d.NewVolume
			found = true
		}
	}
	assert.True(t, found, "expected an L2_DELTA for the partially-filled ask level")
	assert.Equal(t, common.Quantity(20), latest)
}

func TestWorker_CancelOrderPublishesCancelEvent(t *testing.T) {
	w, bus, instrument := newTestWorker(t)
	sub := bus.Subscribe()

	order := limitOrder(instrument, common.Bid, 100, 10)
	require.NoError(t, w.PlaceOrder(context.Background(), order))
	require.NoError(t, w.CancelOrder(context.Background(), order.ID))

	var cancelSeen bool
	require.Eventually(t, func() bool {
		for {
			ev, _, ok := sub.Next()
			if !ok {
				return cancelSeen
			}
			if ev.EventTag() == events.TagOrderCancel {
				cancelSeen = true
			}
		}
	}, time.Second, time.Millisecond)
}

func TestWorker_StopFinishesInFlightCommandThenExits(t *testing.T) {
	instrument := uuid.New()
	bus := events.NewBus(64, nil)
	w := New(instrument, bus, 16)
	w.Start(context.Background())

	order := limitOrder(instrument, common.Bid, 100, 10)
	require.NoError(t, w.PlaceOrder(context.Background(), order))
	require.NoError(t, w.Stop())
}

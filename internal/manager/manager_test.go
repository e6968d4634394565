package manager

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skarn/internal/common"
	"skarn/internal/errs"
	"skarn/internal/events"
)

func newTestManager(t *testing.T) (*Manager, *events.Bus, uuid.UUID) {
	t.Helper()
	bus := events.NewBus(64, nil)
	m := New(bus, 16)
	instrument := uuid.New()
	m.Register(context.Background(), instrument)
	t.Cleanup(m.Shutdown)
	return m, bus, instrument
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

func TestManager_AddOrderRoutesToRegisteredInstrument(t *testing.T) {
	m, _, instrument := newTestManager(t)
	err := m.AddOrder(context.Background(), limitOrder(instrument, common.Bid, 100, 10))
	assert.NoError(t, err)
}

func TestManager_AddOrderFailsForUnregisteredInstrument(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.AddOrder(context.Background(), limitOrder(uuid.New(), common.Bid, 100, 10))
	assert.ErrorIs(t, err, errs.ErrInstrumentNotRegistered)
}

func TestManager_HaltRejectsNewOrdersButAllowsCancel(t *testing.T) {
	m, bus, instrument := newTestManager(t)
	sub := bus.Subscribe()

	order := limitOrder(instrument, common.Bid, 100, 10)
	require.NoError(t, m.AddOrder(context.Background(), order))

	m.Halt([]uuid.UUID{instrument})

	err := m.AddOrder(context.Background(), limitOrder(instrument, common.Bid, 99, 10))
	assert.ErrorIs(t, err, errs.ErrOrderbookHalted)

	require.NoError(t, m.CancelOrder(context.Background(), instrument, order.ID))

	var sawStatus bool
	require.Eventually(t, func() bool {
		for {
			ev, _, ok := sub.Next()
			if !ok {
				return sawStatus
			}
			if status, isStatus := ev.(events.TradingStatusEvent); isStatus && status.Halted {
				sawStatus = true
			}
		}
	}, time.Second, time.Millisecond)
}

func TestManager_ResumeClearsHaltedFlag(t *testing.T) {
	m, _, instrument := newTestManager(t)

	m.Halt([]uuid.UUID{instrument})
	err := m.AddOrder(context.Background(), limitOrder(instrument, common.Bid, 100, 10))
	assert.ErrorIs(t, err, errs.ErrOrderbookHalted)

	m.Resume([]uuid.UUID{instrument})
	err = m.AddOrder(context.Background(), limitOrder(instrument, common.Bid, 100, 10))
	assert.NoError(t, err)
}

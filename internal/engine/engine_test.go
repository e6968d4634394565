package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skarn/internal/common"
	"skarn/internal/errs"
)

func newEngine() (*Engine, uuid.UUID) {
	instrument := uuid.New()
	return New(instrument), instrument
}

func limitOrder(instrument uuid.UUID, side common.Side, tif common.TimeInForce, price common.Price, qty common.Quantity) *common.Order {
	p := price
	return &common.Order{
		ID:            uuid.New(),
		InstrumentID:  instrument,
		Side:          side,
		Type:          common.Limit,
		TIF:           tif,
		LimitPrice:    &p,
		BaseAmount:    qty,
		RemainingBase: qty,
		Status:        common.Submitted,
	}
}

func marketOrder(instrument uuid.UUID, side common.Side, qty common.Quantity) *common.Order {
	return &common.Order{
		ID:            uuid.New(),
		InstrumentID:  instrument,
		Side:          side,
		Type:          common.Market,
		TIF:           common.IOC,
		BaseAmount:    qty,
		RemainingBase: qty,
		Status:        common.Submitted,
	}
}

// Scenario 1: empty-book GTC limit rest.
func TestProcessOrder_EmptyBookGTCLimitRests(t *testing.T) {
	e, instrument := newEngine()

	order := limitOrder(instrument, common.Bid, common.GTC, 100_000, 100_000)
	result, err := e.ProcessOrder(order)
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Equal(t, common.Unfilled, result.Taker.Status)

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.Equal(t, common.Price(100_000), bid)

	_, ok = e.BestAsk()
	assert.False(t, ok)
}

// Scenario 2: full-fill match.
func TestProcessOrder_FullFillMatch(t *testing.T) {
	e, instrument := newEngine()

	maker := limitOrder(instrument, common.Ask, common.GTC, 100_000, 100_000)
	_, err := e.ProcessOrder(maker)
	require.NoError(t, err)

	taker := limitOrder(instrument, common.Bid, common.GTC, 100_000, 100_000)
	result, err := e.ProcessOrder(taker)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, common.Price(100_000), trade.Price)
	assert.Equal(t, common.Quantity(100_000), trade.BaseAmount)
	assert.Equal(t, common.Quantity(10_000_000_000), trade.QuoteAmount)

	assert.Equal(t, common.Filled, result.Taker.Status)
	require.Len(t, result.ChangedOrders, 1)
	assert.Equal(t, common.Filled, result.ChangedOrders[0].Status)

	_, ok := e.BestBid()
	assert.False(t, ok)
	_, ok = e.BestAsk()
	assert.False(t, ok)
}

// Scenario 3: partial fill with price improvement.
func TestProcessOrder_PartialFillWithPriceImprovement(t *testing.T) {
	e, instrument := newEngine()

	maker := limitOrder(instrument, common.Ask, common.GTC, 90_000, 100_000)
	_, err := e.ProcessOrder(maker)
	require.NoError(t, err)

	taker := limitOrder(instrument, common.Bid, common.GTC, 100_000, 200_000)
	result, err := e.ProcessOrder(taker)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, common.Price(90_000), result.Trades[0].Price)
	assert.Equal(t, common.Quantity(100_000), result.Trades[0].BaseAmount)

	assert.Equal(t, common.PartiallyFilled, result.Taker.Status)
	assert.Equal(t, common.Quantity(100_000), result.Taker.RemainingBase)

	bid, ok := e.BestBid()
	require.True(t, ok)
	assert.Equal(t, common.Price(100_000), bid)
	assert.Equal(t, common.Filled, result.ChangedOrders[0].Status)
}

// Scenario 4: market order against an empty book.
func TestProcessOrder_MarketWithNoLiquidity(t *testing.T) {
	e, instrument := newEngine()

	order := marketOrder(instrument, common.Bid, 1)
	_, err := e.ProcessOrder(order)
	assert.ErrorIs(t, err, errs.ErrInsufficientLiquidity)

	_, ok := e.BestBid()
	assert.False(t, ok)
}

// Scenario 5: IOC partial fill then cancel of the remainder.
func TestProcessOrder_IOCPartialThenCancel(t *testing.T) {
	e, instrument := newEngine()

	maker := limitOrder(instrument, common.Ask, common.GTC, 100_000, 100_000)
	_, err := e.ProcessOrder(maker)
	require.NoError(t, err)

	taker := limitOrder(instrument, common.Bid, common.IOC, 100_000, 200_000)
	result, err := e.ProcessOrder(taker)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, common.Quantity(100_000), result.Trades[0].BaseAmount)
	assert.Equal(t, common.PartiallyFilledCancelled, result.Taker.Status)

	assert.Equal(t, 0, e.book.OrderCountAtPrice(common.Bid, 100_000))
}

// Scenario 6: multi-level sweep.
func TestProcessOrder_MultiLevelSweep(t *testing.T) {
	e, instrument := newEngine()

	for _, seed := range []struct {
		price common.Price
		qty   common.Quantity
	}{
		{102_000, 100_000},
		{103_000, 200_000},
		{105_000, 300_000},
	} {
		_, err := e.ProcessOrder(limitOrder(instrument, common.Ask, common.GTC, seed.price, seed.qty))
		require.NoError(t, err)
	}

	taker := limitOrder(instrument, common.Bid, common.GTC, 104_000, 500_000)
	result, err := e.ProcessOrder(taker)
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, common.Price(102_000), result.Trades[0].Price)
	assert.Equal(t, common.Quantity(100_000), result.Trades[0].BaseAmount)
	assert.Equal(t, common.Price(103_000), result.Trades[1].Price)
	assert.Equal(t, common.Quantity(200_000), result.Trades[1].BaseAmount)

	assert.Equal(t, common.PartiallyFilled, result.Taker.Status)
	assert.Equal(t, common.Quantity(200_000), result.Taker.RemainingBase)

	ask, ok := e.BestAsk()
	require.True(t, ok)
	assert.Equal(t, common.Price(105_000), ask)
}

func TestProcessOrder_WrongInstrumentRejected(t *testing.T) {
	e, _ := newEngine()
	order := limitOrder(uuid.New(), common.Bid, common.GTC, 100, 10)
	_, err := e.ProcessOrder(order)
	assert.ErrorIs(t, err, errs.ErrWrongInstrument)
}

func TestProcessOrder_LimitWithoutPriceRejected(t *testing.T) {
	e, instrument := newEngine()
	order := limitOrder(instrument, common.Bid, common.GTC, 100, 10)
	order.LimitPrice = nil
	_, err := e.ProcessOrder(order)
	require.Error(t, err)
	var coreErr *errs.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.CodeInvalidOrder, coreErr.Code)
}

func TestProcessOrder_ZeroQuantityRejected(t *testing.T) {
	e, instrument := newEngine()
	order := limitOrder(instrument, common.Bid, common.GTC, 100, 0)
	_, err := e.ProcessOrder(order)
	require.Error(t, err)
	var coreErr *errs.CoreError
	require.ErrorAs(t, err, &coreErr)
	assert.Equal(t, errs.CodeInvalidOrder, coreErr.Code)
	assert.Equal(t, uint64(0), order.SequenceID, "a rejected zero-quantity order never consumes a sequence id")
}

func TestProcessOrder_StopOrdersWaitWithoutMatching(t *testing.T) {
	e, instrument := newEngine()

	trigger := common.Price(95_000)
	order := &common.Order{
		ID:            uuid.New(),
		InstrumentID:  instrument,
		Side:          common.Bid,
		Type:          common.Stop,
		TIF:           common.GTC,
		TriggerPrice:  &trigger,
		BaseAmount:    100,
		RemainingBase: 100,
	}
	result, err := e.ProcessOrder(order)
	require.NoError(t, err)
	assert.Equal(t, common.WaitingTrigger, result.Taker.Status)
	assert.Empty(t, result.Trades)

	_, ok := e.BestBid()
	assert.False(t, ok)
}

func TestCancelOrder_MarksPartiallyFilledCancelledWhenFillOccurred(t *testing.T) {
	e, instrument := newEngine()

	maker := limitOrder(instrument, common.Ask, common.GTC, 90_000, 100_000)
	_, err := e.ProcessOrder(maker)
	require.NoError(t, err)

	taker := limitOrder(instrument, common.Bid, common.GTC, 100_000, 200_000)
	result, err := e.ProcessOrder(taker)
	require.NoError(t, err)

	cancelled, err := e.CancelOrder(result.Taker.ID)
	require.NoError(t, err)
	assert.Equal(t, common.PartiallyFilledCancelled, cancelled.Status)

	_, err = e.CancelOrder(result.Taker.ID)
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)
}

func TestProcessOrder_SequenceIDsAreMonotonicallyIncreasing(t *testing.T) {
	e, instrument := newEngine()

	first, err := e.ProcessOrder(limitOrder(instrument, common.Bid, common.GTC, 100, 10))
	require.NoError(t, err)
	second, err := e.ProcessOrder(limitOrder(instrument, common.Bid, common.GTC, 99, 10))
	require.NoError(t, err)

	assert.Less(t, first.Taker.SequenceID, second.Taker.SequenceID)
}

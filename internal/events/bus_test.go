package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishWithNoSubscribersSucceeds(t *testing.T) {
	bus := NewBus(8, nil)
	assert.NotPanics(t, func() {
		bus.Publish(TradingStatusEvent{InstrumentID: uuid.New(), Halted: true})
	})
}

func TestBus_SubscribeOnlySeesFutureEvents(t *testing.T) {
	bus := NewBus(8, nil)
	bus.Publish(TradingStatusEvent{InstrumentID: uuid.New(), Halted: true})

	sub := bus.Subscribe()
	_, _, ok := sub.Next()
	assert.False(t, ok, "subscription should not see events published before it was created")

	instrument := uuid.New()
	bus.Publish(TradingStatusEvent{InstrumentID: instrument, Halted: false})

	ev, err, ok := sub.Next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, instrument, ev.Instrument())
}

func TestBus_MultipleSubscribersEachSeeEveryEvent(t *testing.T) {
	bus := NewBus(8, nil)
	subA := bus.Subscribe()
	subB := bus.Subscribe()

	instrument := uuid.New()
	bus.Publish(TradingStatusEvent{InstrumentID: instrument, Halted: true})

	for _, sub := range []*Subscription{subA, subB} {
		ev, err, ok := sub.Next()
		require.True(t, ok)
		require.NoError(t, err)
		assert.Equal(t, instrument, ev.Instrument())
	}
}

func TestBus_SlowSubscriberReportsLag(t *testing.T) {
	bus := NewBus(4, nil)
	sub := bus.Subscribe()

	for i := 0; i < 10; i++ {
		bus.Publish(TradingStatusEvent{InstrumentID: uuid.New(), Halted: i%2 == 0})
	}

	_, err, ok := sub.Next()
	require.True(t, ok)
	var lag ErrLag
	require.ErrorAs(t, err, &lag)
	assert.Equal(t, uint64(6), lag.Dropped)
}

func TestBus_CapacityRoundsUpToPowerOfTwo(t *testing.T) {
	bus := NewBus(10, nil)
	assert.Equal(t, 16, len(bus.slots))
}

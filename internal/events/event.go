// Package events defines the core's outbound event taxonomy and the
// publish/subscribe layer that carries it to handlers (persistence,
// market-data publishers, ...).
//
// The taxonomy is grounded on the teacher's wire event shapes in
// internal/net/messages.go, generalized from that single OrderUpdate/Trade
// pair into the spec's full nine-tag union (spec.md §6); the bus itself is
// grounded on ejyy-femto_go's events_ring.go lock-free single-producer ring,
// generalized to multiple producers (matching engine workers run
// concurrently, one per instrument) and multiple independent subscriber
// cursors.
package events

import (
	"time"

	"github.com/google/uuid"

	"skarn/internal/common"
)

// Tag identifies which event shape a value carries.
type Tag string

const (
	TagOrderAck      Tag = "ORDER_ACK"
	TagOrderReject   Tag = "ORDER_REJECT"
	TagOrderCancel   Tag = "ORDER_CANCEL"
	TagOrderUpdate   Tag = "ORDER_UPDATE"
	TagMatch         Tag = "MATCH"
	TagL1Update      Tag = "L1_UPDATE"
	TagL2Delta       Tag = "L2_DELTA"
	TagSnapshot      Tag = "SNAPSHOT"
	TagTradingStatus Tag = "TRADING_STATUS"
)

// Event is the common interface every published value satisfies: enough for
// the bus and dispatcher to route by tag without knowing the payload shape.
type Event interface {
	EventTag() Tag
	Instrument() uuid.UUID
}

// OrderAckEvent reports that an order was accepted and assigned a status.
type OrderAckEvent struct {
	OrderID      uuid.UUID
	InstrumentID uuid.UUID
	Status       common.OrderStatus
	SequenceID   uint64
	Timestamp    time.Time
}

func (e OrderAckEvent) EventTag() Tag         { return TagOrderAck }
func (e OrderAckEvent) Instrument() uuid.UUID { return e.InstrumentID }

// OrderRejectEvent reports that an order was rejected before matching.
type OrderRejectEvent struct {
	OrderID      uuid.UUID
	InstrumentID uuid.UUID
	Reason       string
	ErrorCode    string
	SequenceID   uint64
	Timestamp    time.Time
}

func (e OrderRejectEvent) EventTag() Tag         { return TagOrderReject }
func (e OrderRejectEvent) Instrument() uuid.UUID { return e.InstrumentID }

// OrderCancelEvent reports a successful cancellation.
type OrderCancelEvent struct {
	OrderID      uuid.UUID
	InstrumentID uuid.UUID
	FilledBase   common.Quantity
	FilledQuote  common.Quantity
	Remaining    common.Quantity
	SequenceID   uint64
	Timestamp    time.Time
}

func (e OrderCancelEvent) EventTag() Tag         { return TagOrderCancel }
func (e OrderCancelEvent) Instrument() uuid.UUID { return e.InstrumentID }

// OrderUpdateEvent reports a maker's or taker's state change mid-match.
type OrderUpdateEvent struct {
	OrderID       uuid.UUID
	InstrumentID  uuid.UUID
	AccountID     uuid.UUID
	FilledBase    common.Quantity
	FilledQuote   common.Quantity
	RemainingBase common.Quantity
	Status        common.OrderStatus
	SequenceID    uint64
	Timestamp     time.Time
}

func (e OrderUpdateEvent) EventTag() Tag         { return TagOrderUpdate }
func (e OrderUpdateEvent) Instrument() uuid.UUID { return e.InstrumentID }

// MatchEvent reports one trade and the resulting taker/maker statuses.
type MatchEvent struct {
	InstrumentID  uuid.UUID
	TakerOrderID  uuid.UUID
	MakerOrderID  uuid.UUID
	TakerAccount  uuid.UUID
	MakerAccount  uuid.UUID
	TakerStatus   common.OrderStatus
	MakerStatus   common.OrderStatus
	BaseAmount    common.Quantity
	QuoteAmount   common.Quantity
	Price         common.Price
	SequenceID    uint64
	Timestamp     time.Time
}

func (e MatchEvent) EventTag() Tag         { return TagMatch }
func (e MatchEvent) Instrument() uuid.UUID { return e.InstrumentID }

// L1UpdateEvent reports the best bid/ask after an operation.
type L1UpdateEvent struct {
	InstrumentID uuid.UUID
	BestBid      *common.Price
	BestAsk      *common.Price
	Timestamp    time.Time
}

func (e L1UpdateEvent) EventTag() Tag         { return TagL1Update }
func (e L1UpdateEvent) Instrument() uuid.UUID { return e.InstrumentID }

// L2DeltaEvent reports a single price level's new volume; zero means the
// level was removed.
type L2DeltaEvent struct {
	InstrumentID uuid.UUID
	Side         common.Side
	Price        common.Price
	NewVolume    common.Quantity
	Timestamp    time.Time
}

func (e L2DeltaEvent) EventTag() Tag         { return TagL2Delta }
func (e L2DeltaEvent) Instrument() uuid.UUID { return e.InstrumentID }

// SnapshotLevel is one row of a SnapshotEvent's per-side level list.
type SnapshotLevel struct {
	Price      common.Price
	Volume     common.Quantity
	OrderCount int
}

// SnapshotEvent reports a full depth snapshot.
type SnapshotEvent struct {
	InstrumentID uuid.UUID
	Bids         []SnapshotLevel
	Asks         []SnapshotLevel
	Timestamp    time.Time
}

func (e SnapshotEvent) EventTag() Tag         { return TagSnapshot }
func (e SnapshotEvent) Instrument() uuid.UUID { return e.InstrumentID }

// TradingStatusEvent reports a halt or resume.
type TradingStatusEvent struct {
	InstrumentID uuid.UUID
	Halted       bool
	Timestamp    time.Time
}

func (e TradingStatusEvent) EventTag() Tag         { return TagTradingStatus }
func (e TradingStatusEvent) Instrument() uuid.UUID { return e.InstrumentID }

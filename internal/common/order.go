package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order is the central entity the book, the depth tracker and the matching
// engine all operate on.
//
// Invariants (enforced by the matching engine, not by this struct):
// RemainingBase+FilledBase == BaseAmount; FilledQuote == the sum of
// (match base * match price) over every match this order took part in; a
// Limit or StopLimit order that reaches the book carries a non-nil
// LimitPrice; a Stop or StopLimit order carries a non-nil TriggerPrice.
type Order struct {
	ID           uuid.UUID
	ExtID        *string
	AccountID    uuid.UUID
	InstrumentID uuid.UUID

	Side   Side
	Type   OrderType
	TIF    TimeInForce
	Source Source

	LimitPrice   *Price
	TriggerPrice *Price
	TriggerBy    *TriggerType

	BaseAmount     Quantity
	RemainingBase  Quantity
	FilledBase     Quantity
	RemainingQuote Quantity
	FilledQuote    Quantity

	Status OrderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time

	// SequenceID is assigned by the owning engine when the order is first
	// accepted by ProcessOrder; it breaks ties between orders resting at
	// the same price, and orders the event stream.
	SequenceID uint64
}

// Clone returns a deep-enough copy: safe to hand to a caller (e.g. embedded
// in an event, or returned from a query) without aliasing the book's copy.
func (o *Order) Clone() *Order {
	clone := *o
	if o.LimitPrice != nil {
		p := *o.LimitPrice
		clone.LimitPrice = &p
	}
	if o.TriggerPrice != nil {
		p := *o.TriggerPrice
		clone.TriggerPrice = &p
	}
	if o.TriggerBy != nil {
		t := *o.TriggerBy
		clone.TriggerBy = &t
	}
	if o.ExtID != nil {
		id := *o.ExtID
		clone.ExtID = &id
	}
	return &clone
}

func (o *Order) String() string {
	limit := "nil"
	if o.LimitPrice != nil {
		limit = fmt.Sprintf("%d", *o.LimitPrice)
	}
	return fmt.Sprintf(
		"Order{id=%s instrument=%s side=%s type=%s tif=%s limit=%s remaining=%d filled=%d status=%s seq=%d}",
		o.ID, o.InstrumentID, o.Side, o.Type, o.TIF, limit, o.RemainingBase, o.FilledBase, o.Status, o.SequenceID,
	)
}

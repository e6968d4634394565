// Package common holds the data model shared by the order book, the depth
// tracker, the matching engine and the event layer: orders, trades, and the
// small closed enums that describe them.
package common

import "github.com/google/uuid"

// Price is a fixed-point integer: base units scaled by a power of ten chosen
// by the deployment. The matching path never touches a float.
type Price int64

// Quantity is a fixed-point base or quote amount. Always non-negative.
type Quantity uint64

// Side is which side of the book an order rests on.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// Opposite returns the side an incoming order of this side matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderType selects the routing behaviour in the matching engine.
type OrderType uint8

const (
	Limit OrderType = iota
	Market
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Stop:
		return "STOP"
	case StopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls what happens to an order's unfilled remainder.
type TimeInForce uint8

const (
	// GTC: good-till-cancelled, unfilled remainder rests on the book.
	GTC TimeInForce = iota
	// IOC: immediate-or-cancel, unfilled remainder is cancelled, never rests.
	IOC
)

func (tif TimeInForce) String() string {
	if tif == IOC {
		return "IOC"
	}
	return "GTC"
}

// TriggerType is how a Stop/StopLimit order's trigger price is evaluated.
// LastPrice is the only value defined by the core; activation itself is out
// of scope (see DESIGN.md).
type TriggerType uint8

const (
	LastPrice TriggerType = iota
)

// Source records where an order originated.
type Source uint8

const (
	Api Source = iota
	Front
)

func (s Source) String() string {
	if s == Front {
		return "FRONT"
	}
	return "API"
}

// OrderStatus is a node in the status transition graph from spec.md §4.2.
// A status may only ever move forward through the graph below:
//
//	Submitted ──► Unfilled ──► PartiallyFilled ──► Filled
//	    │           │              │
//	    │           │              └─► PartiallyFilledCancelled
//	    │           └──────────────────► Cancelled
//	    └─► WaitingTrigger (terminal for this core)
//	    └─► Rejected (boundary rejection, never produced by the core itself)
type OrderStatus uint8

const (
	Submitted OrderStatus = iota
	Unfilled
	PartiallyFilled
	Filled
	Cancelled
	PartiallyFilledCancelled
	WaitingTrigger
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case Submitted:
		return "SUBMITTED"
	case Unfilled:
		return "UNFILLED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case PartiallyFilledCancelled:
		return "PARTIALLY_FILLED_CANCELLED"
	case WaitingTrigger:
		return "WAITING_TRIGGER"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further status transition is expected from
// this status in the core's lifecycle.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, PartiallyFilledCancelled, WaitingTrigger, Rejected:
		return true
	default:
		return false
	}
}

// Nil is the zero-value order/account/instrument id.
var Nil = uuid.Nil

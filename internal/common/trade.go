package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trade is emitted whenever two orders match. Price is taken from the
// maker's resting limit price: price improvement always accrues to the
// taker, never the maker.
type Trade struct {
	ID           uuid.UUID
	InstrumentID uuid.UUID
	MakerOrderID uuid.UUID
	TakerOrderID uuid.UUID

	BaseAmount  Quantity
	QuoteAmount Quantity
	Price       Price

	Timestamp time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s instrument=%s maker=%s taker=%s base=%d quote=%d price=%d at=%s}",
		t.ID, t.InstrumentID, t.MakerOrderID, t.TakerOrderID, t.BaseAmount, t.QuoteAmount, t.Price,
		t.Timestamp.Format(time.RFC3339),
	)
}

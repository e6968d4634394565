package events

import (
	"fmt"
	"sync/atomic"
)

// capacity must be a power of two so cursor wraparound can use a bit mask
// instead of a modulo, the same trick ejyy-femto_go's ring buffer uses.
const defaultCapacity = 1 << 14 // 16384

// ErrLag is returned from Subscription.Next when the caller fell more than
// the bus's capacity behind and the oldest pending events were overwritten.
// Dropped counts how many events were skipped to catch back up.
type ErrLag struct {
	Dropped uint64
}

func (e ErrLag) Error() string {
	return fmt.Sprintf("events: subscriber lagged, dropped %d events", e.Dropped)
}

// Bus is a fixed-capacity ring broadcasting Events to any number of
// subscribers. Publish never blocks and always succeeds, even with zero
// subscribers (spec.md §5): slow subscribers lose old events, they never
// hold up the publisher.
//
// Grounded on ejyy-femto_go's RingBuffer, generalized from one writer
// position to an atomic write cursor safe under concurrent publishers (one
// per instrument worker) and from one reader position to one per
// Subscription.
type Bus struct {
	slots   []atomic.Pointer[Event]
	mask    uint64
	write   atomic.Uint64
	metrics *Metrics
}

// NewBus creates a bus with the given ring capacity, rounded up to the next
// power of two if necessary. capacity <= 0 selects the package default.
// metrics may be nil, in which case publishing is not instrumented.
func NewBus(capacity int, metrics *Metrics) *Bus {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	size := nextPowerOfTwo(capacity)
	return &Bus{
		slots:   make([]atomic.Pointer[Event], size),
		mask:    uint64(size - 1),
		metrics: metrics,
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Publish broadcasts ev to every current and future subscriber. Never
// blocks, never fails.
func (b *Bus) Publish(ev Event) {
	pos := b.write.Add(1) - 1
	b.slots[pos&b.mask].Store(&ev)
	b.metrics.recordPublished(ev.EventTag())
}

// Subscribe creates a new Subscription starting at the bus's current write
// position: it sees only events published from this point on.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{bus: b}
	sub.read.Store(b.write.Load())
	return sub
}

// Subscription is one independent read cursor over a Bus.
type Subscription struct {
	bus  *Bus
	read atomic.Uint64
}

// Next returns the next event, blocking-free: ok is false if nothing new
// has been published yet. If the subscriber fell behind far enough that the
// ring overwrote unread slots, Next jumps the cursor forward to the oldest
// slot still available and returns ErrLag reporting how many were skipped;
// the event returned alongside ErrLag is the first one still available.
func (s *Subscription) Next() (Event, error, bool) {
	write := s.bus.write.Load()
	read := s.read.Load()
	if read >= write {
		return nil, nil, false
	}

	var lagErr error
	capacity := uint64(len(s.bus.slots))
	if write > capacity {
		oldest := write - capacity
		if read < oldest {
			lagErr = ErrLag{Dropped: oldest - read}
			read = oldest
		}
	}

	ptr := s.bus.slots[read&s.bus.mask].Load()
	s.read.Store(read + 1)
	var ev Event
	if ptr != nil {
		ev = *ptr
	}
	return ev, lagErr, true
}

package events

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

// idleBackoff bounds how long the dispatcher loop sleeps between empty
// polls of the bus, so it isn't a pure busy-spin when idle.
const idleBackoff = 200 * time.Microsecond

// Handler is the capability spec.md §9 asks for: a handler lists which tags
// it cares about and is invoked once per matching event. No inheritance
// hierarchy; a handler that cares about several tags just lists them all.
type Handler interface {
	Name() string
	EventTypes() []Tag
	Handle(ctx context.Context, ev Event) error
}

// Dispatcher reads from one Bus subscription and fans out to registered
// handlers. Each handler invocation is scheduled as a separate ants task so
// a slow handler can't stall delivery to the others; handler failures are
// logged and the event is still considered delivered (spec.md §5, §7).
//
// Grounded on abdoElHodaky-tradSys's WorkerPoolFactory use of ants.Pool,
// adapted from a named-pool factory to a single pool dedicated to one
// dispatcher loop, and from zap to the teacher's zerolog.
type Dispatcher struct {
	sub      *Subscription
	pool     *ants.Pool
	metrics  *Metrics
	handlers map[Tag][]Handler
	t        tomb.Tomb
}

// NewDispatcher creates a dispatcher reading from sub and fanning out to
// handlers via an ants pool of the given size. metrics may be nil.
func NewDispatcher(sub *Subscription, poolSize int, metrics *Metrics) (*Dispatcher, error) {
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		sub:      sub,
		pool:     pool,
		metrics:  metrics,
		handlers: make(map[Tag][]Handler),
	}, nil
}

// Register adds a handler for every tag it declares interest in.
func (d *Dispatcher) Register(h Handler) {
	for _, tag := range h.EventTypes() {
		d.handlers[tag] = append(d.handlers[tag], h)
	}
}

// Start launches the dispatcher's read loop under a tomb, the same
// goroutine-lifecycle pattern the teacher uses for its net server.
func (d *Dispatcher) Start(ctx context.Context) {
	d.t.Go(func() error {
		return d.run(ctx)
	})
}

// Stop signals the dispatcher to exit and waits for it to finish, then
// releases the underlying ants pool.
func (d *Dispatcher) Stop() error {
	d.t.Kill(nil)
	err := d.t.Wait()
	d.pool.Release()
	return err
}

func (d *Dispatcher) run(ctx context.Context) error {
	for {
		select {
		case <-d.t.Dying():
			return nil
		default:
		}

		ev, err, ok := d.sub.Next()
		if !ok {
			time.Sleep(idleBackoff)
			continue
		}
		if err != nil {
			if lag, isLag := err.(ErrLag); isLag {
				d.metrics.recordDropped("dispatcher", lag.Dropped)
				log.Warn().Uint64("dropped", lag.Dropped).Msg("event dispatcher lagged")
			}
		}
		if ev == nil {
			continue
		}
		d.dispatch(ctx, ev)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	handlers := d.handlers[ev.EventTag()]
	for _, h := range handlers {
		h := h
		err := d.pool.Submit(func() {
			if err := h.Handle(ctx, ev); err != nil {
				d.metrics.recordHandlerError(h.Name(), ev.EventTag())
				log.Error().Err(err).Str("handler", h.Name()).Str("tag", string(ev.EventTag())).
					Msg("event handler failed")
			}
		})
		if err != nil {
			log.Error().Err(err).Str("handler", h.Name()).Msg("failed to submit event handler task")
		}
	}
	d.metrics.setQueueDepth(d.pool.Waiting())
}

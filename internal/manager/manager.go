// Package manager implements the orderbook manager: it routes each command
// to the worker owning its instrument and enforces the halt/resume trading
// lifecycle at the boundary, before any command reaches a worker.
//
// Grounded on the Rust original's orderbook_manager_service.rs (halted set
// checked with a read lock on the fast path; cancellations skip the check
// entirely; halt/resume directly mutate the set and publish one status
// event per affected instrument), reimplemented with Go's sync.RWMutex in
// place of parking_lot::RwLock and skarn/internal/worker.Worker in place of
// the original's per-instrument channel/task pair.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"skarn/internal/common"
	"skarn/internal/errs"
	"skarn/internal/events"
	"skarn/internal/worker"
)

// Manager routes commands to per-instrument workers and owns the halted
// set. Its own state (the instrument map and the halted set) is protected
// by a readers-writer lock held only for map/set lookups, never across an
// engine operation (spec.md §5).
type Manager struct {
	bus *events.Bus

	mu      sync.RWMutex
	workers map[uuid.UUID]*worker.Worker
	halted  map[uuid.UUID]struct{}

	channelCapacity int
}

// New creates an empty manager publishing to bus. Instruments are added
// with Register before they can accept commands.
func New(bus *events.Bus, channelCapacity int) *Manager {
	return &Manager{
		bus:             bus,
		workers:         make(map[uuid.UUID]*worker.Worker),
		halted:          make(map[uuid.UUID]struct{}),
		channelCapacity: channelCapacity,
	}
}

// Register spawns a worker for instrumentID and starts it running. Safe to
// call only before the instrument receives any commands.
func (m *Manager) Register(ctx context.Context, instrumentID uuid.UUID) {
	w := worker.New(instrumentID, m.bus, m.channelCapacity)
	w.Start(ctx)

	m.mu.Lock()
	m.workers[instrumentID] = w
	m.mu.Unlock()
}

// Shutdown stops every registered worker, letting each finish its
// in-progress command first.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	workers := make([]*worker.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.RUnlock()

	for _, w := range workers {
		if err := w.Stop(); err != nil {
			log.Error().Err(err).Str("instrument", w.InstrumentID.String()).Msg("worker stop returned error")
		}
	}
}

func (m *Manager) lookup(instrumentID uuid.UUID) (*worker.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[instrumentID]
	if !ok {
		return nil, errs.ErrInstrumentNotRegistered
	}
	return w, nil
}

func (m *Manager) isHalted(instrumentID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, halted := m.halted[instrumentID]
	return halted
}

// AddOrder routes order to its instrument's worker.
//
// Fails synchronously, before reaching the worker, with
// errs.ErrInstrumentNotRegistered or errs.ErrOrderbookHalted.
func (m *Manager) AddOrder(ctx context.Context, order *common.Order) error {
	w, err := m.lookup(order.InstrumentID)
	if err != nil {
		return err
	}
	if m.isHalted(order.InstrumentID) {
		return errs.ErrOrderbookHalted
	}
	return w.PlaceOrder(ctx, order)
}

// CancelOrder routes a cancel request to instrument's worker. Cancellations
// are always permitted, even on a halted instrument.
func (m *Manager) CancelOrder(ctx context.Context, instrument uuid.UUID, orderID uuid.UUID) error {
	w, err := m.lookup(instrument)
	if err != nil {
		return err
	}
	return w.CancelOrder(ctx, orderID)
}

// Halt marks each of instruments as halted, rejecting new place-order
// commands from this point on, and publishes one TRADING_STATUS event per
// affected instrument.
func (m *Manager) Halt(instruments []uuid.UUID) {
	m.mu.Lock()
	for _, id := range instruments {
		m.halted[id] = struct{}{}
	}
	m.mu.Unlock()

	for _, id := range instruments {
		m.bus.Publish(events.TradingStatusEvent{InstrumentID: id, Halted: true, Timestamp: time.Now()})
	}
}

// Resume clears the halted flag for each of instruments and publishes one
// TRADING_STATUS event per affected instrument.
func (m *Manager) Resume(instruments []uuid.UUID) {
	m.mu.Lock()
	for _, id := range instruments {
		delete(m.halted, id)
	}
	m.mu.Unlock()

	for _, id := range instruments {
		m.bus.Publish(events.TradingStatusEvent{InstrumentID: id, Halted: false, Timestamp: time.Now()})
	}
}

// PublishStatus publishes the current TRADING_STATUS for instrument without
// changing it.
func (m *Manager) PublishStatus(instrument uuid.UUID) error {
	if _, err := m.lookup(instrument); err != nil {
		return err
	}
	m.bus.Publish(events.TradingStatusEvent{
		InstrumentID: instrument,
		Halted:       m.isHalted(instrument),
		Timestamp:    time.Now(),
	})
	return nil
}

// PublishSnapshot asks instrument's worker to publish a SNAPSHOT event with
// up to limit levels per side.
func (m *Manager) PublishSnapshot(ctx context.Context, instrument uuid.UUID, limit int) error {
	w, err := m.lookup(instrument)
	if err != nil {
		return err
	}
	return w.RequestSnapshot(ctx, limit)
}

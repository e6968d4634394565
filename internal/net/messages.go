// Package net is the demo boundary adapter: a small length-prefixed binary
// TCP protocol in front of the manager, standing in for the HTTP/JSON and
// message-bus surfaces spec.md §1 scopes out of the core.
//
// Grounded on the teacher's internal/net/messages.go wire format (BigEndian
// fixed headers, explicit length-prefixed trailing strings), generalized
// from a single float64-priced, ticker-keyed order to the spec's
// uuid-keyed, fixed-point common.Order, and from a single asset book to
// per-instrument routing.
package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skarn/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified field length")
)

// MessageType tags an incoming client message.
type MessageType uint16

const (
	NewOrder MessageType = iota
	CancelOrder
	SnapshotRequest
)

// ReportMessageType tags an outgoing server message.
type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

// Message is any parsed client message.
type Message interface {
	GetType() MessageType
}

// Exported header-length constants let boundary clients (e.g. cmd/client)
// build wire messages without duplicating the layout.
const (
	BaseMessageHeaderLen = 2  // type
	uuidLen              = 16 // binary form of a uuid.UUID

	// instrument(16) + account(16) + side(1) + type(1) + tif(1) + limitPresent(1)
	// + limitPrice(8) + quantity(8)
	NewOrderMessageHeaderLen = 16 + 16 + 1 + 1 + 1 + 1 + 8 + 8
	// instrument(16) + orderID(16)
	CancelOrderMessageHeaderLen = 16 + 16
	// instrument(16) + limit(2)
	SnapshotRequestMessageHeaderLen = 16 + 2
)

// BaseMessage carries the common type tag every message starts with.
type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case SnapshotRequest:
		return parseSnapshotRequest(body)
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessage requests that an order be placed.
type NewOrderMessage struct {
	BaseMessage
	InstrumentID uuid.UUID
	AccountID    uuid.UUID
	Side         common.Side
	Type         common.OrderType
	TIF          common.TimeInForce
	LimitPrice   *common.Price
	Quantity     common.Quantity
}

// Order builds the common.Order the manager expects, assigning it a fresh
// internal id.
func (m *NewOrderMessage) Order() *common.Order {
	return &common.Order{
		ID:            uuid.New(),
		AccountID:     m.AccountID,
		InstrumentID:  m.InstrumentID,
		Side:          m.Side,
		Type:          m.Type,
		TIF:           m.TIF,
		Source:        common.Api,
		LimitPrice:    m.LimitPrice,
		BaseAmount:    m.Quantity,
		RemainingBase: m.Quantity,
		Status:        common.Submitted,
		CreatedAt:     time.Now(),
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}

	offset := 0
	instrument, err := uuid.FromBytes(msg[offset : offset+uuidLen])
	if err != nil {
		return NewOrderMessage{}, fmt.Errorf("parsing instrument id: %w", err)
	}
	m.InstrumentID = instrument
	offset += uuidLen

	account, err := uuid.FromBytes(msg[offset : offset+uuidLen])
	if err != nil {
		return NewOrderMessage{}, fmt.Errorf("parsing account id: %w", err)
	}
	m.AccountID = account
	offset += uuidLen

	m.Side = common.Side(msg[offset])
	offset++
	m.Type = common.OrderType(msg[offset])
	offset++
	m.TIF = common.TimeInForce(msg[offset])
	offset++
	limitPresent := msg[offset] != 0
	offset++

	limitPrice := common.Price(binary.BigEndian.Uint64(msg[offset : offset+8]))
	offset += 8
	if limitPresent {
		m.LimitPrice = &limitPrice
	}

	m.Quantity = common.Quantity(binary.BigEndian.Uint64(msg[offset : offset+8]))
	return m, nil
}

// CancelOrderMessage requests that a resting order be cancelled.
type CancelOrderMessage struct {
	BaseMessage
	InstrumentID uuid.UUID
	OrderID      uuid.UUID
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}

	instrument, err := uuid.FromBytes(msg[0:uuidLen])
	if err != nil {
		return CancelOrderMessage{}, fmt.Errorf("parsing instrument id: %w", err)
	}
	m.InstrumentID = instrument

	orderID, err := uuid.FromBytes(msg[uuidLen : 2*uuidLen])
	if err != nil {
		return CancelOrderMessage{}, fmt.Errorf("parsing order id: %w", err)
	}
	m.OrderID = orderID
	return m, nil
}

// SnapshotRequestMessage requests a depth snapshot.
type SnapshotRequestMessage struct {
	BaseMessage
	InstrumentID uuid.UUID
	Limit        uint16
}

func parseSnapshotRequest(msg []byte) (SnapshotRequestMessage, error) {
	if len(msg) < SnapshotRequestMessageHeaderLen {
		return SnapshotRequestMessage{}, ErrMessageTooShort
	}
	m := SnapshotRequestMessage{BaseMessage: BaseMessage{TypeOf: SnapshotRequest}}

	instrument, err := uuid.FromBytes(msg[0:uuidLen])
	if err != nil {
		return SnapshotRequestMessage{}, fmt.Errorf("parsing instrument id: %w", err)
	}
	m.InstrumentID = instrument
	m.Limit = binary.BigEndian.Uint16(msg[uuidLen : uuidLen+2])
	return m, nil
}

// Report is an outgoing message: either an execution report for a trade, or
// an error report carrying a reason string.
type Report struct {
	MessageType  ReportMessageType
	InstrumentID uuid.UUID
	OrderID      uuid.UUID
	Side         common.Side
	Timestamp    uint64
	Quantity     common.Quantity
	Price        common.Price
	ErrStrLen    uint32
	Err          string
}

// ReportFixedHeaderLen is the fixed-size portion of a serialized Report,
// preceding the variable-length Err string.
const ReportFixedHeaderLen = 1 + uuidLen + uuidLen + 1 + 8 + 8 + 8 + 4

// Serialize converts the report to its wire form.
func (r *Report) Serialize() ([]byte, error) {
	buf := make([]byte, ReportFixedHeaderLen+len(r.Err))

	offset := 0
	buf[offset] = byte(r.MessageType)
	offset++

	copy(buf[offset:offset+uuidLen], r.InstrumentID[:])
	offset += uuidLen
	copy(buf[offset:offset+uuidLen], r.OrderID[:])
	offset += uuidLen

	buf[offset] = byte(r.Side)
	offset++

	binary.BigEndian.PutUint64(buf[offset:offset+8], r.Timestamp)
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(r.Quantity))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(r.Price))
	offset += 8

	binary.BigEndian.PutUint32(buf[offset:offset+4], r.ErrStrLen)
	offset += 4

	if r.ErrStrLen > 0 {
		copy(buf[offset:], r.Err)
	}
	return buf, nil
}

// generateWireTradeReport builds the execution report for one trade.
func generateWireTradeReport(trade common.Trade) ([]byte, error) {
	report := Report{
		MessageType:  ExecutionReport,
		InstrumentID: trade.InstrumentID,
		OrderID:      trade.TakerOrderID,
		Timestamp:    uint64(trade.Timestamp.Unix()),
		Quantity:     trade.BaseAmount,
		Price:        trade.Price,
	}
	return report.Serialize()
}

// generateWireErrorReport builds the error report for a failed command.
func generateWireErrorReport(instrumentID, orderID uuid.UUID, err error) ([]byte, error) {
	errStr := err.Error()
	report := Report{
		MessageType:  ErrorReport,
		InstrumentID: instrumentID,
		OrderID:      orderID,
		Timestamp:    uint64(time.Now().Unix()),
		ErrStrLen:    uint32(len(errStr)),
		Err:          errStr,
	}
	return report.Serialize()
}

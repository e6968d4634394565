package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skarn/internal/common"
	"skarn/internal/manager"
	"skarn/internal/utils"
)

const (
	MaxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession is an individual connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a parsed message to the client that sent it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// Server is the demo length-prefixed TCP adapter in front of a manager.
// It owns no matching state of its own: every command is translated to a
// manager call and every response travels back over the originating
// connection.
type Server struct {
	address            string
	port               int
	manager            *manager.Manager
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

// New creates a server listening on address:port, routing commands to mgr.
func New(address string, port int, mgr *manager.Manager) *Server {
	return &Server{
		address:        address,
		port:           port,
		manager:        mgr,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().Str("address", conn.LocalAddr().String()).Msg("new client added")
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// ReportTrade sends the execution report for trade back over clientAddress.
func (s *Server) ReportTrade(clientAddress string, trade common.Trade) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	report, err := generateWireTradeReport(trade)
	if err != nil {
		return err
	}

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := client.conn.Write(report); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// ReportError sends an error report back over clientAddress.
func (s *Server) ReportError(clientAddress string, instrumentID, orderID uuid.UUID, cause error) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	report, err := generateWireErrorReport(instrumentID, orderID, cause)
	if err != nil {
		return err
	}

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := client.conn.Write(report); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(t, message); err != nil {
				log.Error().Err(err).Str("clientAddress", message.clientAddress).Msg("error handling message")
			}
		}
	}
}

func (s *Server) handleMessage(t *tomb.Tomb, message ClientMessage) error {
	ctx := context.Background()
	switch message.message.GetType() {
	case NewOrder:
		msg, ok := message.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		order := msg.Order()
		if err := s.manager.AddOrder(ctx, order); err != nil {
			log.Error().Err(err).Str("clientAddress", message.clientAddress).Msg("error placing order")
			return s.ReportError(message.clientAddress, order.InstrumentID, order.ID, err)
		}
	case CancelOrder:
		msg, ok := message.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		if err := s.manager.CancelOrder(ctx, msg.InstrumentID, msg.OrderID); err != nil {
			log.Error().Err(err).Str("clientAddress", message.clientAddress).Str("order", msg.OrderID.String()).
				Msg("error cancelling order")
			return s.ReportError(message.clientAddress, msg.InstrumentID, msg.OrderID, err)
		}
	case SnapshotRequest:
		msg, ok := message.message.(SnapshotRequestMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		limit := int(msg.Limit)
		if limit <= 0 {
			limit = 10
		}
		if err := s.manager.PublishSnapshot(ctx, msg.InstrumentID, limit); err != nil {
			return s.ReportError(message.clientAddress, msg.InstrumentID, uuid.Nil, err)
		}
	default:
		log.Error().Int("messageType", int(message.message.GetType())).Msg("invalid message type")
		return ErrInvalidMessageType
	}
	return nil
}

func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Str("address", conn.LocalAddr().String()).Err(err).Msg("error closing connection")
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.LocalAddr().String()).Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MaxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			log.Error().Err(err).Str("address", conn.LocalAddr().String()).Msg("error reading from connection")
			s.deleteClientSession(conn.LocalAddr().String())
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.LocalAddr().String()).Msg("error parsing message")
			s.deleteClientSession(conn.LocalAddr().String())
			return nil
		}

		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.LocalAddr().String(),
		}

		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.LocalAddr().String()] = ClientSession{conn: conn}
}

func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}

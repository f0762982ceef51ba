package relay

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"signalrelay/internal/metrics"
)

// RoomRequiredReason is sent with the policy close for a connection that did
// not name a room.
const RoomRequiredReason = "Room name is required."

var ErrRoomRequired = errors.New("room name is required")

// RoomFromPath derives the room name from a raw request path: one leading
// "/" is stripped and nothing else is touched.
func RoomFromPath(path string) (string, error) {
	room := strings.TrimPrefix(path, "/")
	if room == "" {
		return "", ErrRoomRequired
	}
	return room, nil
}

type State int

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Hub bundles the registry and dispatcher a Session runs against.
type Hub struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Metrics    *metrics.Relay
}

func NewHub(m *metrics.Relay) *Hub {
	reg := NewRegistry(m)
	return &Hub{
		Registry:   reg,
		Dispatcher: NewDispatcher(reg, m),
		Metrics:    m,
	}
}

// Session drives one connection through CONNECTING -> ACTIVE -> CLOSED.
// Close and transport errors both end in the same leave.
type Session struct {
	hub  *Hub
	conn Conn

	mu    sync.Mutex
	state State
	room  string
}

func (h *Hub) NewSession(conn Conn) *Session {
	return &Session{hub: h, conn: conn, state: StateConnecting}
}

// Open resolves the room from path and joins it. A missing room name closes
// the connection with a policy violation and returns ErrRoomRequired; the
// registry is never touched in that case.
func (s *Session) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return nil
	}

	room, err := RoomFromPath(path)
	if err != nil {
		s.state = StateClosed
		s.hub.Metrics.Connections.WithLabelValues("rejected").Inc()
		zap.L().Info("relay.rejected", zap.String("conn", s.conn.ID()), zap.Error(err))
		if cerr := s.conn.Close(ClosePolicyViolation, RoomRequiredReason); cerr != nil {
			zap.L().Debug("relay.reject_close", zap.String("conn", s.conn.ID()), zap.Error(cerr))
		}
		return err
	}

	s.room = room
	s.state = StateActive
	n := s.hub.Registry.Join(room, s.conn)
	s.hub.Metrics.Connections.WithLabelValues("accepted").Inc()
	zap.L().Info("relay.join",
		zap.String("room", room),
		zap.String("conn", s.conn.ID()),
		zap.Int("members", n),
	)
	return nil
}

// Receive relays msg to the rest of the room. It returns the number of
// members the message was handed to; outside ACTIVE it does nothing.
func (s *Session) Receive(msg Message) int {
	s.mu.Lock()
	state, room := s.state, s.room
	s.mu.Unlock()

	if state != StateActive {
		return 0
	}
	s.hub.Metrics.MessagesReceived.Inc()
	return s.hub.Dispatcher.Broadcast(room, s.conn, msg)
}

// Close moves the session to CLOSED. From ACTIVE it leaves the room, which
// drops the room once it is empty. A non-nil err is reported, never retried.
// Calling Close more than once is harmless.
func (s *Session) Close(err error) {
	s.mu.Lock()
	prev, room := s.state, s.room
	s.state = StateClosed
	s.mu.Unlock()

	if prev != StateActive {
		return
	}

	if err != nil {
		s.hub.Metrics.TransportErrors.Inc()
		zap.L().Error("relay.transport_error",
			zap.String("room", room),
			zap.String("conn", s.conn.ID()),
			zap.Error(err),
		)
	}

	n := s.hub.Registry.Leave(room, s.conn)
	zap.L().Info("relay.leave",
		zap.String("room", room),
		zap.String("conn", s.conn.ID()),
		zap.Int("members", n),
	)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room is empty until the session has been opened.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

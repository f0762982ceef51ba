package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signalrelay/internal/relay"
)

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
	errUnknownFrame  = errors.New("unknown frame type")
)

// clientConn adapts a gorilla connection to relay.Conn. All data frames go
// through the send queue and are written by writePump, so Send never waits on
// the peer.
type clientConn struct {
	rawConn *websocket.Conn
	id      string

	writeWait  time.Duration
	pingPeriod time.Duration

	mu     sync.Mutex // guards send against a concurrent shutdown
	send   chan relay.Message
	open   atomic.Bool
	done   chan struct{}
	closed sync.Once
}

var _ relay.Conn = (*clientConn)(nil)

func newClientConn(raw *websocket.Conn, queue int, writeWait, pingPeriod time.Duration) *clientConn {
	c := &clientConn{
		rawConn:    raw,
		id:         uuid.NewString(),
		writeWait:  writeWait,
		pingPeriod: pingPeriod,
		send:       make(chan relay.Message, queue),
		done:       make(chan struct{}),
	}
	c.open.Store(true)
	return c
}

func (c *clientConn) ID() string { return c.id }

func (c *clientConn) IsOpen() bool { return c.open.Load() }

func (c *clientConn) Send(msg relay.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open.Load() {
		return ErrConnClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close sends a close frame carrying code and reason, then tears the socket
// down. Only the first call has any effect.
func (c *clientConn) Close(code int, reason string) error {
	var err error
	c.closed.Do(func() {
		c.mu.Lock()
		c.open.Store(false)
		close(c.done)
		c.mu.Unlock()

		deadline := time.Now().Add(c.writeWait)
		err = c.rawConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		if cerr := c.rawConn.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// markClosed flips liveness and releases the socket without a close frame,
// for when the transport already failed.
func (c *clientConn) markClosed() {
	c.closed.Do(func() {
		c.mu.Lock()
		c.open.Store(false)
		close(c.done)
		c.mu.Unlock()
		_ = c.rawConn.Close()
	})
}

// writePump owns every data write on the connection and keeps the peer alive
// with pings.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			mt, err := messageType(msg.Frame)
			if err != nil {
				zap.L().Warn("ws.write_frame", zap.String("conn", c.id), zap.Error(err))
				continue
			}
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.rawConn.WriteMessage(mt, msg.Data); err != nil {
				zap.L().Warn("ws.write_failed", zap.String("conn", c.id), zap.Error(err))
				c.markClosed()
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.writeWait)
			if err := c.rawConn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				zap.L().Debug("ws.ping", zap.String("conn", c.id), zap.Error(err))
				c.markClosed()
				return
			}

		case <-c.done:
			return
		}
	}
}

func messageType(f relay.Frame) (int, error) {
	switch f {
	case relay.TextFrame:
		return websocket.TextMessage, nil
	case relay.BinaryFrame:
		return websocket.BinaryMessage, nil
	default:
		return 0, errUnknownFrame
	}
}

func frameOf(mt int) relay.Frame {
	if mt == websocket.BinaryMessage {
		return relay.BinaryFrame
	}
	return relay.TextFrame
}

package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signalrelay/internal/config"
	"signalrelay/internal/relay"
)

// ActiveResponse is the body served to plain HTTP requests.
const ActiveResponse = "Signaling server is active."

const shutdownReason = "Server shutting down."

type WsServer struct {
	hub      *relay.Hub
	upgrader websocket.Upgrader

	readLimit  int64
	queueSize  int
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewWsServer(hub *relay.Hub, cfg *config.Config) *WsServer {
	return &WsServer{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Rooms are not authenticated, so origin checks buy nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readLimit:  cfg.ReadLimit,
		queueSize:  cfg.SendQueueSize,
		writeWait:  cfg.WriteWait,
		pongWait:   cfg.PongWait,
		pingPeriod: cfg.PingPeriod(),
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// Handle serves every path: websocket upgrades join the room named by the
// path, anything else gets the liveness response.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	if !websocket.IsWebSocketUpgrade(ginCtx.Request) {
		ginCtx.Header("Cache-Control", "no-cache")
		ginCtx.String(http.StatusOK, ActiveResponse)
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	conn := newClientConn(rawConn, s.queueSize, s.writeWait, s.pingPeriod)
	session := s.hub.NewSession(conn)

	// The raw path keeps percent-encoding intact.
	if err := session.Open(ginCtx.Request.URL.EscapedPath()); err != nil {
		return
	}

	go conn.writePump()
	go s.reader(session, conn)
}

// Shutdown closes every registered member. Their readers then move the
// sessions to CLOSED, which empties and drops the rooms.
func (s *WsServer) Shutdown() {
	members := s.hub.Registry.Members()
	for _, c := range members {
		if err := c.Close(relay.CloseGoingAway, shutdownReason); err != nil {
			zap.L().Debug("ws.shutdown_close", zap.String("conn", c.ID()), zap.Error(err))
		}
	}
	zap.L().Info("ws.shutdown", zap.Int("closed", len(members)))
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(session *relay.Session, conn *clientConn) {
	var readErr error
	defer func() {
		conn.markClosed()
		session.Close(readErr)
	}()

	if s.readLimit > 0 {
		conn.rawConn.SetReadLimit(s.readLimit)
	}
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		mt, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			readErr = classifyReadError(conn, err)
			return
		}
		session.Receive(relay.Message{Frame: frameOf(mt), Data: data})
	}
}

// classifyReadError returns nil for an orderly close and err otherwise.
func classifyReadError(conn *clientConn, err error) error {
	if !conn.IsOpen() {
		// We closed the socket ourselves (shutdown or failed write).
		return nil
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return nil
	}
	return err
}

package relay

// Frame is the framing a message arrived with. Values line up with the
// websocket opcodes so transports can convert without a lookup table.
type Frame int

const (
	TextFrame   Frame = 1
	BinaryFrame Frame = 2
)

func (f Frame) String() string {
	switch f {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is an opaque payload together with its framing. The relay never
// looks inside Data.
type Message struct {
	Frame Frame
	Data  []byte
}

// Close codes used by the lifecycle controller.
const (
	ClosePolicyViolation = 1008
	CloseGoingAway       = 1001
)

// Conn is the transport-side handle for one member. The registry only keeps a
// reference to it; closing is always the transport's job.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Send hands msg to the connection. It must not block on a slow peer.
	Send(msg Message) error
	IsOpen() bool
	Close(code int, reason string) error
}

package ws

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalrelay/internal/relay"
)

func TestClientConnSendNeverBlocks(t *testing.T) {
	c := newClientConn(nil, 2, time.Second, time.Second)
	msg := relay.Message{Frame: relay.TextFrame, Data: []byte("x")}

	require.NoError(t, c.Send(msg))
	require.NoError(t, c.Send(msg))
	assert.ErrorIs(t, c.Send(msg), ErrSendQueueFull)
	assert.True(t, c.IsOpen(), "a full queue does not end the connection")
}

func TestClientConnIDsAreUnique(t *testing.T) {
	a := newClientConn(nil, 1, time.Second, time.Second)
	b := newClientConn(nil, 1, time.Second, time.Second)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestFrameMapping(t *testing.T) {
	assert.Equal(t, relay.TextFrame, frameOf(websocket.TextMessage))
	assert.Equal(t, relay.BinaryFrame, frameOf(websocket.BinaryMessage))

	mt, err := messageType(relay.TextFrame)
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)

	mt, err = messageType(relay.BinaryFrame)
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)

	_, err = messageType(relay.Frame(9))
	assert.Error(t, err)
}

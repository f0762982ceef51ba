package relay

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBroadcastSkipsSender(t *testing.T) {
	hub := newTestHub()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	for _, conn := range []Conn{a, b, c} {
		hub.Registry.Join("R1", conn)
	}

	p := Message{Frame: TextFrame, Data: []byte(`{"type":"offer","sdp":"v=0"}`)}
	n := hub.Dispatcher.Broadcast("R1", a, p)

	assert.Equal(t, 2, n)
	assert.Equal(t, []Message{p}, b.received())
	assert.Equal(t, []Message{p}, c.received())
	assert.Empty(t, a.received())
}

func TestBroadcastPreservesPayload(t *testing.T) {
	hub := newTestHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	hub.Registry.Join("R1", a)
	hub.Registry.Join("R1", b)

	raw := []byte{0x00, 0xff, 0x7b, 0x0a, 0xc3}
	hub.Dispatcher.Broadcast("R1", a, Message{Frame: BinaryFrame, Data: raw})

	got := b.received()
	require.Len(t, got, 1)
	assert.Equal(t, BinaryFrame, got[0].Frame)
	assert.Equal(t, raw, got[0].Data)
}

func TestBroadcastSkipsClosedMembers(t *testing.T) {
	hub := newTestHub()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	for _, conn := range []Conn{a, b, c} {
		hub.Registry.Join("R1", conn)
	}
	_ = b.Close(1000, "")

	n := hub.Dispatcher.Broadcast("R1", a, Message{Frame: TextFrame, Data: []byte("hi")})

	assert.Equal(t, 1, n)
	assert.Empty(t, b.received())
	assert.Len(t, c.received(), 1)
	// Skipping does not remove: that stays the transport's job.
	assert.Len(t, hub.Registry.MembersOf("R1"), 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(hub.Metrics.DeliveriesSkipped))
}

func TestBroadcastIsolatesSendFailures(t *testing.T) {
	hub := newTestHub()
	sender := newFakeConn("sender")
	hub.Registry.Join("R1", sender)

	healthy := make([]*fakeConn, 0, 4)
	for i := 0; i < 4; i++ {
		c := newFakeConn(fmt.Sprintf("ok%d", i))
		healthy = append(healthy, c)
		hub.Registry.Join("R1", c)
	}
	broken := newFakeConn("broken")
	broken.failWith(errors.New("queue full"))
	hub.Registry.Join("R1", broken)

	n := hub.Dispatcher.Broadcast("R1", sender, Message{Frame: TextFrame, Data: []byte("x")})

	assert.Equal(t, 4, n)
	for _, c := range healthy {
		assert.Len(t, c.received(), 1, c.ID())
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(hub.Metrics.DeliveryFailures))
	assert.Equal(t, 4.0, testutil.ToFloat64(hub.Metrics.Deliveries))
}

func TestBroadcastRoomsAreIsolated(t *testing.T) {
	hub := newTestHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	x, y := newFakeConn("x"), newFakeConn("y")
	hub.Registry.Join("R1", a)
	hub.Registry.Join("R1", b)
	hub.Registry.Join("r1", x)
	hub.Registry.Join("r1", y)

	hub.Dispatcher.Broadcast("R1", a, Message{Frame: TextFrame, Data: []byte("for R1")})
	hub.Dispatcher.Broadcast("r1", x, Message{Frame: TextFrame, Data: []byte("for r1")})

	assert.Equal(t, "for R1", string(b.received()[0].Data))
	assert.Equal(t, "for r1", string(y.received()[0].Data))
	assert.Len(t, b.received(), 1)
	assert.Len(t, y.received(), 1)
}

func TestBroadcastToUnknownOrLoneRoom(t *testing.T) {
	hub := newTestHub()
	a := newFakeConn("a")

	assert.Zero(t, hub.Dispatcher.Broadcast("ghost", a, Message{Frame: TextFrame, Data: []byte("x")}))
	assert.False(t, hub.Registry.Has("ghost"))

	hub.Registry.Join("R1", a)
	assert.Zero(t, hub.Dispatcher.Broadcast("R1", a, Message{Frame: TextFrame, Data: []byte("x")}))
	assert.Empty(t, a.received())
}

func TestBroadcastDuringChurn(t *testing.T) {
	hub := newTestHub()
	sender := newFakeConn("sender")
	hub.Registry.Join("R1", sender)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c := newFakeConn(fmt.Sprintf("c%d", i))
			hub.Registry.Join("R1", c)
			hub.Registry.Leave("R1", c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hub.Dispatcher.Broadcast("R1", sender, Message{Frame: TextFrame, Data: []byte("x")})
		}
	}()
	wg.Wait()

	assert.Empty(t, sender.received())
	assert.ElementsMatch(t, []Conn{sender}, hub.Registry.MembersOf("R1"))
}

func TestBroadcastDeliversToAllButSender(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hub := newTestHub()
		n := rapid.IntRange(1, 12).Draw(t, "members")
		senderIdx := rapid.IntRange(0, n-1).Draw(t, "sender")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")

		conns := make([]*fakeConn, n)
		for i := range conns {
			conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
			hub.Registry.Join("room", conns[i])
		}

		msg := Message{Frame: BinaryFrame, Data: data}
		got := hub.Dispatcher.Broadcast("room", conns[senderIdx], msg)
		if got != n-1 {
			t.Fatalf("delivered to %d members, want %d", got, n-1)
		}
		for i, c := range conns {
			recv := c.received()
			if i == senderIdx {
				if len(recv) != 0 {
					t.Fatalf("sender received its own message")
				}
				continue
			}
			if len(recv) != 1 || !assert.Equal(t, msg, recv[0]) {
				t.Fatalf("member %d received %v", i, recv)
			}
		}
	})
}

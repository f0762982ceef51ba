package relay

import (
	"go.uber.org/zap"

	"signalrelay/internal/metrics"
)

// Dispatcher fans a message out to the other members of a room.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Relay
}

func NewDispatcher(reg *Registry, m *metrics.Relay) *Dispatcher {
	return &Dispatcher{registry: reg, metrics: m}
}

// Broadcast hands msg to every open member of room except sender and returns
// how many members accepted it. Closed members are skipped, not removed; a
// member that refuses the message does not stop delivery to the rest.
func (d *Dispatcher) Broadcast(room string, sender Conn, msg Message) int {
	// Snapshot first so no lock is held while members send.
	members := d.registry.MembersOf(room)

	delivered := 0
	for _, c := range members {
		if c == sender {
			continue
		}
		if !c.IsOpen() {
			d.metrics.DeliveriesSkipped.Inc()
			continue
		}
		if err := c.Send(msg); err != nil {
			d.metrics.DeliveryFailures.Inc()
			zap.L().Warn("relay.send_failed",
				zap.String("room", room),
				zap.String("conn", c.ID()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	d.metrics.Deliveries.Add(float64(delivered))
	return delivered
}

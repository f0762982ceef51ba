package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalrelay"

// Relay groups the collectors shared by the registry, the dispatcher and the
// websocket transport. Each instance registers on its own Registerer so tests
// can build a fresh one per case.
type Relay struct {
	Rooms   prometheus.Gauge
	Members prometheus.Gauge

	Connections     *prometheus.CounterVec // outcome=accepted|rejected
	TransportErrors prometheus.Counter

	MessagesReceived  prometheus.Counter
	Deliveries        prometheus.Counter
	DeliveriesSkipped prometheus.Counter
	DeliveryFailures  prometheus.Counter

	InFlight prometheus.Gauge
	Requests *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Relay {
	m := &Relay{
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently holding at least one member.",
		}),
		Members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Connections currently registered in a room.",
		}),
		Connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Websocket connections by admission outcome.",
		}, []string{"outcome"}),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Active connections that ended with a transport error.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages handed to the dispatcher.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Messages handed to a room member for sending.",
		}),
		DeliveriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_skipped_total",
			Help:      "Deliveries skipped because the member was no longer open.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Deliveries a member refused.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests being handled by the relay server.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests to the relay server.",
		}, []string{"code", "method"}),
	}

	reg.MustRegister(
		m.Rooms,
		m.Members,
		m.Connections,
		m.TransportErrors,
		m.MessagesReceived,
		m.Deliveries,
		m.DeliveriesSkipped,
		m.DeliveryFailures,
		m.InFlight,
		m.Requests,
	)
	return m
}

// NewDiscard returns collectors bound to a throwaway registry.
func NewDiscard() *Relay {
	return New(prometheus.NewRegistry())
}

// Instrument wraps the relay handler with in-flight and request counters.
func (m *Relay) Instrument(h http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.InFlight,
		promhttp.InstrumentHandlerCounter(m.Requests, h))
}

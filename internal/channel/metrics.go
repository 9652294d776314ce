package channel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks live-channel activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	ActivePeers         prometheus.Gauge
	ActiveChannels      prometheus.Gauge
	EventsRelayed       prometheus.Counter
	EventsDropped       prometheus.Counter
	DeliveryFailures    prometheus.Counter
	HandshakeRejections *prometheus.CounterVec
}

// NewMetrics registers the channel collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActivePeers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskboard_channel_active_peers",
			Help: "Current number of admitted card channel connections",
		}),
		ActiveChannels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskboard_channel_active_channels",
			Help: "Current number of cards with at least one connection",
		}),
		EventsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_channel_events_relayed_total",
			Help: "Total number of events broadcast to card channels",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_channel_events_dropped_total",
			Help: "Total number of malformed inbound events dropped",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_channel_delivery_failures_total",
			Help: "Total number of per-connection delivery failures",
		}),
		HandshakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_channel_handshake_rejections_total",
			Help: "Total number of rejected channel handshakes by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) peerAdmitted() {
	if m == nil {
		return
	}
	m.ActivePeers.Inc()
}

func (m *Metrics) peerRemoved() {
	if m == nil {
		return
	}
	m.ActivePeers.Dec()
}

func (m *Metrics) channelOpened() {
	if m == nil {
		return
	}
	m.ActiveChannels.Inc()
}

func (m *Metrics) channelClosed() {
	if m == nil {
		return
	}
	m.ActiveChannels.Dec()
}

func (m *Metrics) eventRelayed() {
	if m == nil {
		return
	}
	m.EventsRelayed.Inc()
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) deliveryFailed() {
	if m == nil {
		return
	}
	m.DeliveryFailures.Inc()
}

func (m *Metrics) handshakeRejected(reason string) {
	if m == nil {
		return
	}
	m.HandshakeRejections.WithLabelValues(reason).Inc()
}

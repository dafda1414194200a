package discovery

import "github.com/prometheus/client_golang/prometheus"

// metrics is optional: every field is nil when no Registerer was supplied,
// and every method is a safe no-op against a nil *metrics.
type metrics struct {
	probesSent        *prometheus.CounterVec
	probesReceived    *prometheus.CounterVec
	announcesSent     *prometheus.CounterVec
	announcesReceived *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		probesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_discovery_probes_sent_total",
			Help: "Discovery probe packets sent, by address family.",
		}, []string{"family"}),
		probesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_discovery_probes_received_total",
			Help: "Discovery probe packets received, by address family.",
		}, []string{"family"}),
		announcesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_discovery_announces_sent_total",
			Help: "Discovery announcement packets sent, by address family.",
		}, []string{"family"}),
		announcesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_discovery_announces_received_total",
			Help: "Discovery announcement entries matched to a local listener, by address family.",
		}, []string{"family"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_discovery_decode_errors_total",
			Help: "Discovery packets that were neither a probe atom nor an announcement map, by address family.",
		}, []string{"family"}),
	}
	reg.MustRegister(m.probesSent, m.probesReceived, m.announcesSent, m.announcesReceived, m.decodeErrors)
	return m
}

func (m *metrics) incProbeSent(family string) {
	if m != nil {
		m.probesSent.WithLabelValues(family).Inc()
	}
}

func (m *metrics) incProbeReceived(family string) {
	if m != nil {
		m.probesReceived.WithLabelValues(family).Inc()
	}
}

func (m *metrics) incAnnounceSent(family string) {
	if m != nil {
		m.announcesSent.WithLabelValues(family).Inc()
	}
}

func (m *metrics) incAnnounceReceived(family string) {
	if m != nil {
		m.announcesReceived.WithLabelValues(family).Inc()
	}
}

func (m *metrics) incDecodeError(family string) {
	if m != nil {
		m.decodeErrors.WithLabelValues(family).Inc()
	}
}

package bridge

import "github.com/prometheus/client_golang/prometheus"

// hubMetrics is nil when no registry was supplied.
type hubMetrics struct {
	clients  prometheus.Gauge
	commands *prometheus.CounterVec
}

func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	m := &hubMetrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osc",
			Subsystem: "bridge",
			Name:      "clients",
			Help:      "Connected WebSocket viewers.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osc",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Viewer commands by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.clients, m.commands)
	return m
}

func (m *hubMetrics) setClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

func (m *hubMetrics) command(result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result).Inc()
}

package osc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// receiverMetrics is nil when no registerer was supplied; every method tolerates that.
type receiverMetrics struct {
	datagrams    prometheus.Counter
	bytes        prometheus.Counter
	decodeErrors prometheus.Counter
	socketErrors prometheus.Counter
	dispatched   prometheus.Counter
	queued       prometheus.Counter
	queueDepth   prometheus.Gauge
	batchSize    prometheus.Histogram
}

func newReceiverMetrics(reg prometheus.Registerer, id string) *receiverMetrics {
	if reg == nil {
		return nil
	}
	labels := prometheus.Labels{"receiver_id": id}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "osc",
			Subsystem:   "receiver",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &receiverMetrics{
		datagrams:    counter("datagrams_total", "Datagrams read from the socket."),
		bytes:        counter("bytes_total", "Bytes read from the socket."),
		decodeErrors: counter("decode_errors_total", "Datagrams dropped because they failed to decode."),
		socketErrors: counter("socket_errors_total", "Receive failures other than would-block."),
		dispatched:   counter("dispatched_total", "Messages delivered to a registered handler."),
		queued:       counter("queued_total", "Messages appended to the pending queue."),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "osc",
			Subsystem:   "receiver",
			Name:        "queue_depth",
			Help:        "Messages waiting in the pending queue.",
			ConstLabels: labels,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "osc",
			Subsystem:   "receiver",
			Name:        "update_batch_size",
			Help:        "Datagrams processed per Update call.",
			Buckets:     []float64{0, 1, 2, 4, 8, 16, 32, 64},
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.datagrams, m.bytes, m.decodeErrors, m.socketErrors,
		m.dispatched, m.queued, m.queueDepth, m.batchSize)
	return m
}

func (m *receiverMetrics) received(n int) {
	if m == nil {
		return
	}
	m.datagrams.Inc()
	m.bytes.Add(float64(n))
}

func (m *receiverMetrics) decodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *receiverMetrics) socketError() {
	if m != nil {
		m.socketErrors.Inc()
	}
}

func (m *receiverMetrics) dispatch() {
	if m != nil {
		m.dispatched.Inc()
	}
}

func (m *receiverMetrics) enqueue(depth int) {
	if m == nil {
		return
	}
	m.queued.Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *receiverMetrics) depth(depth int) {
	if m != nil {
		m.queueDepth.Set(float64(depth))
	}
}

func (m *receiverMetrics) batch(n int) {
	if m != nil {
		m.batchSize.Observe(float64(n))
	}
}

type transmitterMetrics struct {
	sent         prometheus.Counter
	bytes        prometheus.Counter
	encodeErrors prometheus.Counter
	sendErrors   prometheus.Counter
}

func newTransmitterMetrics(reg prometheus.Registerer, id string) *transmitterMetrics {
	if reg == nil {
		return nil
	}
	labels := prometheus.Labels{"transmitter_id": id}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "osc",
			Subsystem:   "transmitter",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &transmitterMetrics{
		sent:         counter("datagrams_total", "Datagrams sent."),
		bytes:        counter("bytes_total", "Bytes sent."),
		encodeErrors: counter("encode_errors_total", "Sends rejected before reaching the socket."),
		sendErrors:   counter("send_errors_total", "Socket send failures."),
	}
	reg.MustRegister(m.sent, m.bytes, m.encodeErrors, m.sendErrors)
	return m
}

func (m *transmitterMetrics) success(n int) {
	if m == nil {
		return
	}
	m.sent.Inc()
	m.bytes.Add(float64(n))
}

func (m *transmitterMetrics) encodeError() {
	if m != nil {
		m.encodeErrors.Inc()
	}
}

func (m *transmitterMetrics) sendError() {
	if m != nil {
		m.sendErrors.Inc()
	}
}

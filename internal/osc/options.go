package osc

import (
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Option configures a Receiver or Transmitter.
type Option func(*options)

type options struct {
	logger     zerolog.Logger
	factory    transport.Factory
	registerer prometheus.Registerer
}

func defaultOptions() options {
	return options{
		logger:  log.Logger,
		factory: transport.DefaultFactory,
	}
}

// WithLogger sets the parent logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransportFactory replaces the raw UDP socket, typically with a mock in tests.
func WithTransportFactory(f transport.Factory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithRegisterer enables Prometheus metrics. Without it no metrics are recorded.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

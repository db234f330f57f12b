package mixer

import (
	"sync"
	"time"

	"github.com/LemmyAI/oscserver/internal/osc"
	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// levelEpsilon is the smallest level move worth broadcasting.
const levelEpsilon = 0.01

// Receiver is the part of osc.Receiver the engine drives.
type Receiver interface {
	Update() int
	HasMessages() bool
	PopMessage() protocol.Message
	SetCallback(address string, h osc.Handler)
	RemoveCallback(address string)
	ChannelPath(index int) string
}

// Engine runs the mixer frame loop. The receiver is owned by the loop goroutine while the
// engine is running.
type Engine struct {
	state        *State
	config       Config
	receiver     Receiver
	broadcaster  Broadcaster
	clock        clock.Clock
	logger       zerolog.Logger
	tickRate     time.Duration
	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	wg           sync.WaitGroup
	deltaMu      sync.Mutex
	deltaTracker *DeltaTracker
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with clock.NewMock in tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the parent logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a mixer over receiver. broadcaster may be nil.
func NewEngine(config Config, receiver Receiver, broadcaster Broadcaster, opts ...Option) *Engine {
	def := DefaultConfig()
	if config.Channels <= 0 {
		config.Channels = def.Channels
	}
	if config.TickRate <= 0 {
		config.TickRate = def.TickRate
	}
	if config.BroadcastRate <= 0 {
		config.BroadcastRate = def.BroadcastRate
	}

	e := &Engine{
		state:        NewState(config, receiver.ChannelPath),
		config:       config,
		receiver:     receiver,
		broadcaster:  broadcaster,
		clock:        clock.New(),
		logger:       log.Logger,
		tickRate:     time.Second / time.Duration(config.TickRate),
		stopCh:       make(chan struct{}),
		deltaTracker: NewDeltaTracker(levelEpsilon),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "mixer").Logger()
	return e
}

// Bind registers one receiver handler per channel address. Start calls it; call it directly
// only when driving Frame by hand.
func (e *Engine) Bind() {
	for _, ch := range e.state.Channels() {
		index := ch.Index
		e.receiver.SetCallback(ch.Address, func(msg protocol.Message) {
			v, ok := messageValue(msg)
			if !ok {
				return
			}
			e.state.SetTarget(index, v, e.clock.Now())
		})
	}
}

// Unbind removes the channel handlers.
func (e *Engine) Unbind() {
	for _, ch := range e.state.Channels() {
		e.receiver.RemoveCallback(ch.Address)
	}
}

// Start registers the channel handlers and begins the frame loop.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.Bind()
	e.wg.Add(1)
	go e.tickLoop()
	e.logger.Info().
		Int("tick_rate", e.config.TickRate).
		Dur("tick_interval", e.tickRate).
		Int("channels", e.config.Channels).
		Msg("mixer started")
}

// Stop stops the frame loop and removes the channel handlers.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
	e.wg.Wait()
	e.Unbind()
	e.logger.Info().Uint64("ticks", e.state.CurrentTick()).Msg("mixer stopped")
}

func (e *Engine) tickLoop() {
	defer e.wg.Done()

	ticker := e.clock.Ticker(e.tickRate)
	defer ticker.Stop()

	last := e.clock.Now()
	lastBroadcast := last
	broadcastInterval := time.Second / time.Duration(e.config.BroadcastRate)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
		}

		now := e.clock.Now()
		e.Frame(now.Sub(last))
		last = now

		if now.Sub(lastBroadcast) >= broadcastInterval {
			e.broadcastLevels(false)
			lastBroadcast = now
		}
	}
}

// Frame runs one frame: poll the receiver, forward unrouted messages, ease levels.
func (e *Engine) Frame(dt time.Duration) {
	e.state.Tick()
	e.receiver.Update()

	for e.receiver.HasMessages() {
		msg := e.receiver.PopMessage()
		if msg.IsZero() {
			break
		}
		e.logger.Debug().Str("address", msg.Address).Msg("unrouted message")
		if e.broadcaster != nil {
			if err := e.broadcaster.BroadcastMessage(msg); err != nil {
				e.logger.Warn().Err(err).Str("address", msg.Address).Msg("message broadcast failed")
			}
		}
	}

	e.state.Step(dt)
}

// BroadcastSnapshot sends every channel regardless of change.
func (e *Engine) BroadcastSnapshot() {
	e.broadcastLevels(true)
}

func (e *Engine) broadcastLevels(fullSync bool) {
	if e.broadcaster == nil {
		return
	}
	e.deltaMu.Lock()
	changed := e.deltaTracker.ComputeDelta(e.state.Channels(), fullSync)
	e.deltaMu.Unlock()
	if len(changed) == 0 {
		return
	}
	if err := e.broadcaster.BroadcastLevels(e.state.CurrentTick(), changed); err != nil {
		e.logger.Warn().Err(err).Int("channels", len(changed)).Msg("level broadcast failed")
	}
}

// State returns the mixer state for external access.
func (e *Engine) State() *State {
	return e.state
}

// CurrentTick returns the current frame number.
func (e *Engine) CurrentTick() uint64 {
	return e.state.CurrentTick()
}

// messageValue takes the first float, falling back to the first double or int32. It reports
// false when the message has no numeric argument.
func messageValue(msg protocol.Message) (float32, bool) {
	switch {
	case msg.FloatCount() > 0:
		return msg.Float(0), true
	case msg.DoubleCount() > 0:
		return float32(msg.Double(0)), true
	case msg.Int32Count() > 0:
		return float32(msg.Int32(0)), true
	}
	return 0, false
}

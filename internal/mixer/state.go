// Package mixer drives an OSC receiver from a fixed-rate frame loop and eases per-channel
// levels toward the values received on the channel addresses.
package mixer

import (
	"sync"
	"time"
)

// Config holds mixer configuration.
type Config struct {
	Channels      int     // Number of channels, addressed 1..Channels (default: 8)
	TickRate      int     // Frames per second (default: 60)
	LevelScale    float32 // Received value multiplier (default: 100)
	Smoothing     float32 // Easing speed per second (default: 10)
	BroadcastRate int     // Level broadcasts per second (default: 20)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Channels:      8,
		TickRate:      60,
		LevelScale:    100,
		Smoothing:     10,
		BroadcastRate: 20,
	}
}

// Channel is one eased level.
type Channel struct {
	Index      int    // 1-based
	Address    string // OSC address that sets the target
	Target     float32
	Level      float32
	LastUpdate time.Time // Last time a target arrived
}

// State holds the channel levels.
type State struct {
	mu       sync.RWMutex
	channels []Channel
	config   Config
	tick     uint64
}

// NewState creates one channel per index, naming each with address(i).
func NewState(config Config, address func(index int) string) *State {
	channels := make([]Channel, config.Channels)
	for i := range channels {
		channels[i] = Channel{Index: i + 1, Address: address(i + 1)}
	}
	return &State{channels: channels, config: config}
}

// SetTarget sets the target of a 1-based channel. Out-of-range indexes are ignored.
func (s *State) SetTarget(index int, value float32, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 1 || index > len(s.channels) {
		return false
	}
	ch := &s.channels[index-1]
	ch.Target = value * s.config.LevelScale
	ch.LastUpdate = now
	return true
}

// Step eases every level toward its target over dt.
func (s *State) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alpha := min(float32(dt.Seconds())*s.config.Smoothing, 1)
	if alpha <= 0 {
		return
	}
	for i := range s.channels {
		ch := &s.channels[i]
		ch.Level += (ch.Target - ch.Level) * alpha
	}
}

// Tick increments and returns the frame counter.
func (s *State) Tick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	return s.tick
}

// CurrentTick returns the frame counter.
func (s *State) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Level returns the current level of a 1-based channel, or 0.
func (s *State) Level(index int) float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 1 || index > len(s.channels) {
		return 0
	}
	return s.channels[index-1].Level
}

// Channels returns a copy of all channels.
func (s *State) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

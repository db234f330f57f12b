package mixer

import (
	"errors"
	"fmt"

	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
)

// Broadcaster delivers mixer output.
type Broadcaster interface {
	BroadcastLevels(tick uint64, levels []LevelUpdate) error
	BroadcastMessage(msg protocol.Message) error
}

// Broadcasters fans out to several broadcasters. Every one is called even if an earlier one
// fails.
type Broadcasters []Broadcaster

// BroadcastLevels sends levels to every broadcaster and joins their errors.
func (bs Broadcasters) BroadcastLevels(tick uint64, levels []LevelUpdate) error {
	var errs []error
	for _, b := range bs {
		if err := b.BroadcastLevels(tick, levels); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BroadcastMessage sends msg to every broadcaster and joins their errors.
func (bs Broadcasters) BroadcastMessage(msg protocol.Message) error {
	var errs []error
	for _, b := range bs {
		if err := b.BroadcastMessage(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FloatSender is the part of osc.Transmitter used for feedback.
type FloatSender interface {
	SendFloat(address string, v float32, target transport.Connection) bool
}

// FeedbackBroadcaster echoes eased levels back out as OSC floats, one message per changed
// channel, to drive motorised faders or meters on the control surface.
type FeedbackBroadcaster struct {
	sender FloatSender
	target transport.Connection
	path   string
}

// NewFeedbackBroadcaster sends to target using path (one %d verb) for the address.
func NewFeedbackBroadcaster(sender FloatSender, target transport.Connection, path string) *FeedbackBroadcaster {
	return &FeedbackBroadcaster{sender: sender, target: target, path: path}
}

// BroadcastLevels sends one float per level to the feedback target.
func (b *FeedbackBroadcaster) BroadcastLevels(_ uint64, levels []LevelUpdate) error {
	failed := 0
	for _, l := range levels {
		if !b.sender.SendFloat(fmt.Sprintf(b.path, l.Channel), l.Level, b.target) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("feedback to %s: %d of %d sends failed", b.target, failed, len(levels))
	}
	return nil
}

// BroadcastMessage does nothing; unrouted messages are not echoed.
func (b *FeedbackBroadcaster) BroadcastMessage(protocol.Message) error {
	return nil
}

package osc

import (
	"sync"

	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/gammazero/deque"
)

// messageQueue is the FIFO of messages that had no handler when they were decoded.
// It grows without bound; the owner is expected to drain it.
type messageQueue struct {
	mu sync.Mutex
	q  deque.Deque[protocol.Message]
}

func (mq *messageQueue) push(msg protocol.Message) int {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	mq.q.PushBack(msg)
	return mq.q.Len()
}

// pop returns the zero Message when the queue is empty.
func (mq *messageQueue) pop() (protocol.Message, int) {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.q.Len() == 0 {
		return protocol.Message{}, 0
	}
	return mq.q.PopFront(), mq.q.Len()
}

func (mq *messageQueue) len() int {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return mq.q.Len()
}

func (mq *messageQueue) clear() {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	mq.q.Clear()
}

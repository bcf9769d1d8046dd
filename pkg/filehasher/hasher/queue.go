package hasher

import (
	"sync"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// item is a queued request or the end-of-input marker.
type item struct {
	req    types.HashRequest
	marker bool
}

// mailbox is an unbounded FIFO. push never blocks, so the registry can
// enqueue while holding its own locks.
type mailbox struct {
	mu    sync.Mutex
	items []item
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(it item) {
	m.mu.Lock()
	m.items = append(m.items, it)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// pop blocks until an item is available or quit is closed.
func (m *mailbox) pop(quit <-chan struct{}) (item, bool) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			it := m.items[0]
			m.items[0] = item{}
			m.items = m.items[1:]
			m.mu.Unlock()
			return it, true
		}
		m.mu.Unlock()

		select {
		case <-m.wake:
		case <-quit:
			return item{}, false
		}
	}
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

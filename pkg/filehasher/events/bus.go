// Package events distributes pipeline notifications to subscribers.
//
// Delivery is best effort: each subscriber has a buffered channel and an
// event is dropped for a subscriber whose channel is full. The pipeline
// never depends on delivery for its own completion.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

// Type identifies an outbound event.
type Type int

const (
	FileFound Type = iota
	ScanFinished
	HashComputed
	CountsChanged
	ProcessingDone
	Progress
)

// String returns the event name.
func (t Type) String() string {
	switch t {
	case FileFound:
		return "file_found"
	case ScanFinished:
		return "scan_finished"
	case HashComputed:
		return "hash_computed"
	case CountsChanged:
		return "counts_changed"
	case ProcessingDone:
		return "processing_done"
	case Progress:
		return "progress"
	default:
		return "unknown"
	}
}

// Event is one notification. Only the fields relevant to Type are set.
type Event struct {
	Type Type

	// Index is the registry row for FileFound and HashComputed.
	Index int

	// Entry is set for FileFound.
	Entry types.FileEntry

	// Result is set for HashComputed.
	Result types.HashResult

	// Counts is set for CountsChanged and ProcessingDone.
	Counts types.Counts

	// Processed is set for Progress.
	Processed int64
}

// DefaultBufferSize is the channel capacity of a new subscriber.
const DefaultBufferSize = 256

// Subscriber receives events on Events until it is unsubscribed or the bus
// is closed.
type Subscriber struct {
	ID     string
	Events chan Event

	kinds map[Type]bool
}

func (s *Subscriber) wants(t Type) bool {
	return len(s.kinds) == 0 || s.kinds[t]
}

// Bus fans events out to subscribers. A nil *Bus discards everything, so
// components can publish unconditionally.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a subscriber for the given kinds, or for every kind
// when none are given. It returns nil once the bus is closed.
func (b *Bus) Subscribe(kinds ...Type) *Subscriber {
	return b.SubscribeBuffered(DefaultBufferSize, kinds...)
}

// SubscribeBuffered is Subscribe with an explicit channel capacity.
func (b *Bus) SubscribeBuffered(size int, kinds ...Type) *Subscriber {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan Event, size),
		kinds:  make(map[Type]bool, len(kinds)),
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish delivers ev to every interested subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

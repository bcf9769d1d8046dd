package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/filehasher/pkg/filehasher/types"
)

func TestBus_Subscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	sub := b.Subscribe()
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 1, b.SubscriberCount())

	other := b.Subscribe()
	assert.NotEqual(t, sub.ID, other.ID)
}

func TestBus_PublishDelivers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	sub := b.Subscribe()
	b.Publish(Event{Type: CountsChanged, Counts: types.Counts{Total: 2, Hashed: 1}})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, CountsChanged, ev.Type)
		assert.Equal(t, 2, ev.Counts.Total)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
	}
}

func TestBus_FiltersByKind(t *testing.T) {
	b := NewBus()
	defer b.Close()

	sub := b.Subscribe(ProcessingDone)
	b.Publish(Event{Type: Progress, Processed: 1})
	b.Publish(Event{Type: ProcessingDone})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, ProcessingDone, ev.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
	}
	assert.Empty(t, sub.Events)
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := NewBus()
	defer b.Close()

	sub := b.SubscribeBuffered(2)
	for i := 0; i < 10; i++ {
		b.Publish(Event{Type: Progress, Processed: int64(i + 1)})
	}
	assert.Len(t, sub.Events, 2)

	first := <-sub.Events
	assert.Equal(t, int64(1), first.Processed)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub.ID)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed")

	b.Unsubscribe(sub.ID)
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	b.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Nil(t, b.Subscribe())

	b.Publish(Event{Type: ScanFinished})
	b.Close()
}

func TestBus_NilIsNoop(t *testing.T) {
	var b *Bus
	assert.Nil(t, b.Subscribe())
	assert.Equal(t, 0, b.SubscriberCount())
	b.Publish(Event{Type: FileFound})
	b.Unsubscribe("x")
	b.Close()
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := NewBus()
	defer b.Close()

	sub := b.SubscribeBuffered(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(Event{Type: HashComputed})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, sub.Events, 500)
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "file_found", FileFound.String())
	assert.Equal(t, "processing_done", ProcessingDone.String())
	assert.Equal(t, "unknown", Type(99).String())
}

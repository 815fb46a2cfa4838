// Package events carries editor session notifications (save status,
// schedule changes) to interested listeners without blocking the editor.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// EventSaveStatusChanged is published on every autosave state transition.
	EventSaveStatusChanged EventType = "save_status_changed"
	// EventScheduleResolved is published after an editing operation re-resolves the schedule.
	EventScheduleResolved EventType = "schedule_resolved"
	// EventSnapshotSaved is published when the phases are explicitly committed.
	EventSnapshotSaved EventType = "snapshot_saved"
	// EventSnapshotReset is published when the live schedule is reset to the snapshot.
	EventSnapshotReset EventType = "snapshot_reset"
	// EventDraftReloaded is published when the draft is replaced from outside the editor.
	EventDraftReloaded EventType = "draft_reloaded"
)

// AllEventTypes lists every event the editor publishes.
var AllEventTypes = []EventType{
	EventSaveStatusChanged,
	EventScheduleResolved,
	EventSnapshotSaved,
	EventSnapshotReset,
	EventDraftReloaded,
}

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
}

type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe bus. Each subscriber gets a
// buffered channel drained by its own goroutine; when the buffer is full the
// event is dropped for that subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
	closed      bool
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. fn runs on a dedicated goroutine; a panic in fn is recovered.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return func() {}
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() { _ = recover() }()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers an event to every subscriber of its type without blocking.
func (b *Bus) Publish(eventType EventType, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels. Later Subscribe calls get a no-op
// subscription and later Publish calls are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
	b.closed = true
}

package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	DraftID   string         `json:"draft_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditLogger appends bus events for one draft to a JSON Lines writer.
// Seq numbers are assigned in write order, so a gap means a line was lost.
type AuditLogger struct {
	mu      sync.Mutex
	w       io.Writer
	draftID string
	seq     uint64
	unsubs  []func()
	onError func(error)
}

func NewAuditLogger(w io.Writer, draftID string) *AuditLogger {
	return &AuditLogger{w: w, draftID: draftID}
}

// OnError sets a callback for write failures. Events are delivered on bus
// goroutines, so there is no caller to return the error to.
func (a *AuditLogger) OnError(fn func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

// Attach subscribes to the given event types, or to AllEventTypes when
// none are given.
func (a *AuditLogger) Attach(b *Bus, types ...EventType) {
	if len(types) == 0 {
		types = AllEventTypes
	}
	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, b.Subscribe(t, func(e Event) {
			if err := a.Record(e); err != nil {
				a.mu.Lock()
				fn := a.onError
				a.mu.Unlock()
				if fn != nil {
					fn(err)
				}
			}
		}))
	}
	a.mu.Lock()
	a.unsubs = append(a.unsubs, unsubs...)
	a.mu.Unlock()
}

// Detach removes every subscription made by Attach.
func (a *AuditLogger) Detach() {
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// Record writes one event as a JSON line.
func (a *AuditLogger) Record(e Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	entry := AuditEntry{
		Seq:       a.seq,
		Timestamp: e.Timestamp,
		EventType: e.Type,
		DraftID:   a.draftID,
		Details:   e.Data,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal %s: %w", e.Type, err)
	}
	line = append(line, '\n')
	if _, err := a.w.Write(line); err != nil {
		return fmt.Errorf("audit: write %s: %w", e.Type, err)
	}
	return nil
}

package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []AuditEntry {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []AuditEntry
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var e AuditEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	return out
}

func TestAuditLogger_Record(t *testing.T) {
	var buf syncBuffer
	a := NewAuditLogger(&buf, "chl_audit")
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

	require.NoError(t, a.Record(Event{Type: EventSnapshotSaved, Timestamp: at, Data: map[string]any{"phases": 3}}))
	require.NoError(t, a.Record(Event{Type: EventSnapshotReset, Timestamp: at}))

	got := buf.entries(t)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.Equal(t, EventSnapshotSaved, got[0].EventType)
	assert.Equal(t, "chl_audit", got[0].DraftID)
	assert.True(t, at.Equal(got[0].Timestamp))
	assert.Equal(t, float64(3), got[0].Details["phases"])
	assert.Nil(t, got[1].Details)
}

func TestAuditLogger_AttachRecordsBusEvents(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var buf syncBuffer
	a := NewAuditLogger(&buf, "chl_audit")
	a.Attach(bus)

	bus.Publish(EventSaveStatusChanged, map[string]any{"status": "saving"})
	bus.Publish(EventDraftReloaded, map[string]any{"id": "chl_audit"})

	require.Eventually(t, func() bool { return len(buf.entries(t)) == 2 }, time.Second, 5*time.Millisecond)

	types := map[EventType]bool{}
	for _, e := range buf.entries(t) {
		types[e.EventType] = true
	}
	assert.True(t, types[EventSaveStatusChanged])
	assert.True(t, types[EventDraftReloaded])

	a.Detach()
	bus.Publish(EventSnapshotSaved, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, buf.entries(t), 2, "no entries after Detach")
}

func TestAuditLogger_AttachSelectedTypes(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	var buf syncBuffer
	a := NewAuditLogger(&buf, "")
	a.Attach(bus, EventSnapshotSaved)
	defer a.Detach()

	bus.Publish(EventSaveStatusChanged, nil)
	bus.Publish(EventSnapshotSaved, nil)

	require.Eventually(t, func() bool { return len(buf.entries(t)) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	got := buf.entries(t)
	require.Len(t, got, 1)
	assert.Equal(t, EventSnapshotSaved, got[0].EventType)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAuditLogger_WriteErrorsReachOnError(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	a := NewAuditLogger(failingWriter{}, "chl_audit")
	errs := make(chan error, 1)
	a.OnError(func(err error) { errs <- err })
	a.Attach(bus, EventSnapshotReset)
	defer a.Detach()

	bus.Publish(EventSnapshotReset, nil)
	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "disk full")
	case <-time.After(time.Second):
		t.Fatal("write error was not reported")
	}
}

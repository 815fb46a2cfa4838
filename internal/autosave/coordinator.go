// Package autosave debounces editor changes into background saves and
// tracks the save indicator state.
package autosave

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
)

// DefaultDelay is the quiet period after the last change before a save runs.
const DefaultDelay = model.DefaultAutosaveDebounceSec * time.Second

var (
	// ErrStopped is returned by SaveNow after Stop.
	ErrStopped = errors.New("autosave: coordinator stopped")
	// ErrNotObserved is returned by SaveNow before any value was observed.
	ErrNotObserved = errors.New("autosave: nothing observed yet")
)

const (
	triggerDebounce = "debounce"
	triggerExplicit = "explicit"
)

// SaveFunc persists one value.
type SaveFunc[T any] func(ctx context.Context, value T) error

// Config tunes a Coordinator. Zero fields take defaults.
type Config struct {
	Delay     time.Duration
	Scheduler Scheduler
	Logger    *logging.Logger
	Now       func() time.Time
	// OnChange receives every state transition. It runs with the
	// coordinator lock held and must not call back into the coordinator.
	OnChange func(model.AutosaveState)
}

// DelayFromConfig converts the autosave section of the config into a delay.
func DelayFromConfig(cfg model.AutosaveConfig) time.Duration {
	if cfg.DebounceSec <= 0 {
		return DefaultDelay
	}
	return time.Duration(cfg.DebounceSec * float64(time.Second))
}

// Coordinator saves the most recently observed value once changes have been
// quiet for the configured delay. Only the latest value is ever saved, and
// at most one save is in flight at a time.
type Coordinator[T any] struct {
	mu   sync.Mutex
	idle *sync.Cond

	ctx      context.Context
	save     SaveFunc[T]
	delay    time.Duration
	sched    Scheduler
	log      *logging.Logger
	now      func() time.Time
	onChange func(model.AutosaveState)
	equal    func(a, b T) bool

	state    model.AutosaveState
	observed bool
	enabled  bool
	latest   T
	dirty    bool
	pending  Task
	seq      uint64
	inFlight bool
	rerun    bool
	stopped  bool
}

// New creates a coordinator in the idle state. ctx bounds every background
// save; Stop does not cancel it, so a save already in flight may finish.
func New[T any](ctx context.Context, save SaveFunc[T], cfg Config) *Coordinator[T] {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Coordinator[T]{
		ctx:      ctx,
		save:     save,
		delay:    cfg.Delay,
		sched:    cfg.Scheduler,
		log:      cfg.Logger.With("autosave"),
		now:      cfg.Now,
		onChange: cfg.OnChange,
		equal:    func(a, b T) bool { return reflect.DeepEqual(a, b) },
		state:    model.AutosaveState{Status: model.SaveStatusIdle},
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// SetEqual overrides the change detector (for testing or custom types).
func (c *Coordinator[T]) SetEqual(fn func(a, b T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.equal = fn
}

// State returns a copy of the current save indicator state.
func (c *Coordinator[T]) State() model.AutosaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator[T]) stateLocked() model.AutosaveState {
	out := c.state
	if c.state.LastSavedAt != nil {
		t := *c.state.LastSavedAt
		out.LastSavedAt = &t
	}
	return out
}

// Observe records the current value. The first observation is the
// baseline and never triggers a save. A changed value (re)starts the quiet
// period while enabled; disabling cancels any pending or queued save.
func (c *Coordinator[T]) Observe(value T, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.enabled = enabled
	if !c.observed {
		c.observed = true
		c.latest = value
		return
	}

	changed := !c.equal(c.latest, value)
	if changed {
		c.latest = value
		c.dirty = true
	}
	if !enabled {
		c.cancelPendingLocked()
		c.rerun = false
		return
	}
	if changed || (c.dirty && c.pending == nil && !c.inFlight) {
		c.armLocked()
	}
}

// Rebase replaces the baseline with value, which is treated as already
// persisted: any pending save is cancelled and nothing is marked unsaved.
func (c *Coordinator[T]) Rebase(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.cancelPendingLocked()
	c.observed = true
	c.latest = value
	c.dirty = false
	c.rerun = false
}

// RebaseIfLatest rebases onto value only if persisted is still the latest
// observed value. It reports whether it did; when it did not, a change
// observed since persisted was saved stays unsaved and armed.
func (c *Coordinator[T]) RebaseIfLatest(persisted, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || !c.equal(c.latest, persisted) {
		return false
	}
	c.cancelPendingLocked()
	c.latest = value
	c.dirty = false
	c.rerun = false
	return true
}

func (c *Coordinator[T]) armLocked() {
	if c.pending != nil {
		c.pending.Stop()
		debounceResets.Inc()
	}
	c.seq++
	seq := c.seq
	c.pending = c.sched.AfterFunc(c.delay, func() { c.fire(seq) })
}

func (c *Coordinator[T]) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	// Invalidates a callback that already left the timer but has not yet
	// acquired the lock.
	c.seq++
}

func (c *Coordinator[T]) fire(seq uint64) {
	c.mu.Lock()
	if c.stopped || seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	if c.inFlight {
		c.rerun = true
		c.mu.Unlock()
		return
	}
	if !c.dirty {
		c.mu.Unlock()
		return
	}
	value := c.begin()
	c.mu.Unlock()

	go c.run(c.ctx, value, triggerDebounce)
}

// begin marks a save as in flight and returns the value to persist.
// Caller holds c.mu.
func (c *Coordinator[T]) begin() T {
	c.dirty = false
	c.inFlight = true
	c.setStatusLocked(model.SaveStatusSaving, "")
	return c.latest
}

func (c *Coordinator[T]) run(ctx context.Context, value T, trigger string) error {
	start := c.now()
	err := c.save(ctx, value)
	elapsed := c.now().Sub(start).Seconds()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	c.idle.Broadcast()

	if c.stopped {
		recordSave("discarded", trigger, elapsed)
		c.log.Debugf("save_discarded trigger=%s", trigger)
		return err
	}

	if err != nil {
		recordSave("failure", trigger, elapsed)
		c.log.Warnf("save_failed trigger=%s error=%v", trigger, err)
		c.setStatusLocked(model.SaveStatusError, err.Error())
	} else {
		recordSave("success", trigger, elapsed)
		now := c.now()
		c.state.LastSavedAt = &now
		c.log.Debugf("save_succeeded trigger=%s duration=%.3fs", trigger, elapsed)
		c.setStatusLocked(model.SaveStatusSaved, "")
	}

	if c.rerun {
		c.rerun = false
		if c.dirty && c.enabled {
			c.armLocked()
		}
	}
	return err
}

// SaveNow cancels any pending autosave, waits for an in-flight save, and
// saves the latest observed value synchronously. It returns the value it
// saved; the error is returned to the caller as well as reflected in State.
func (c *Coordinator[T]) SaveNow(ctx context.Context) (T, error) {
	var zero T
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return zero, ErrStopped
	}
	if !c.observed {
		c.mu.Unlock()
		return zero, ErrNotObserved
	}
	c.cancelPendingLocked()
	for c.inFlight {
		c.idle.Wait()
	}
	if c.stopped {
		c.mu.Unlock()
		return zero, ErrStopped
	}
	c.rerun = false
	value := c.begin()
	c.mu.Unlock()

	if err := c.run(ctx, value, triggerExplicit); err != nil {
		return zero, err
	}
	return value, nil
}

// Wait blocks until no save is in flight.
func (c *Coordinator[T]) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inFlight {
		c.idle.Wait()
	}
}

// Stop cancels any pending save and resets the state to idle. A save that
// is already running completes, but its result no longer updates state.
func (c *Coordinator[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.cancelPendingLocked()
	c.rerun = false
	c.stopped = true
	c.state = model.AutosaveState{Status: model.SaveStatusIdle}
	c.notifyLocked()
}

// Dirty reports whether the latest observed value has not been persisted:
// it changed since the last save or rebase, or the last save failed.
func (c *Coordinator[T]) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty || c.state.Status == model.SaveStatusError
}

// Stopped reports whether Stop has been called.
func (c *Coordinator[T]) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Coordinator[T]) setStatusLocked(to model.SaveStatus, lastErr string) {
	if err := model.ValidateSaveTransition(c.state.Status, to); err != nil {
		c.log.Warnf("save_status_unexpected %v", err)
	}
	c.state.Status = to
	c.state.LastError = lastErr
	c.notifyLocked()
}

func (c *Coordinator[T]) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.stateLocked())
	}
}

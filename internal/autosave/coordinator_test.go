package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/challenge_editor/internal/model"
)

const testDelay = 10 * time.Second

type recorder struct {
	mu     sync.Mutex
	saved  []string
	fail   error
	gate   chan struct{}
	start  chan string
	states []model.SaveStatus
}

func (r *recorder) save(ctx context.Context, v string) error {
	if r.start != nil {
		r.start <- v
	}
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saved = append(r.saved, v)
	return nil
}

func (r *recorder) onChange(s model.AutosaveState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.Status)
}

func (r *recorder) savedValues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.saved...)
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func newTestCoordinator(t *testing.T, r *recorder) (*Coordinator[string], *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	c := New(context.Background(), r.save, Config{
		Delay:     testDelay,
		Scheduler: sched,
		Now:       sched.Now,
		OnChange:  r.onChange,
	})
	return c, sched
}

func TestObserve_FirstValueIsBaseline(t *testing.T) {
	r := &recorder{}
	c, sched := newTestCoordinator(t, r)

	c.Observe("initial", true)
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(testDelay * 2)
	c.Wait()
	assert.Empty(t, r.savedValues())
	assert.Equal(t, model.SaveStatusIdle, c.State().Status)
}

func TestObserve_BurstSavesOnceWithLatestValue(t *testing.T) {
	r := &recorder{}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	assert.False(t, c.Dirty())
	for _, v := range []string{"v1", "v2", "v3", "v4", "v5"} {
		c.Observe(v, true)
		sched.Advance(testDelay / 2)
	}
	c.Wait()
	assert.Empty(t, r.savedValues(), "no save while edits keep arriving")
	assert.Equal(t, 1, sched.Pending())

	sched.Advance(testDelay / 2)
	c.Wait()

	assert.Equal(t, []string{"v5"}, r.savedValues())
	assert.False(t, c.Dirty())
	st := c.State()
	assert.Equal(t, model.SaveStatusSaved, st.Status)
	require.NotNil(t, st.LastSavedAt)
	assert.Equal(t, sched.Now(), *st.LastSavedAt)
	assert.Empty(t, st.LastError)
}

func TestObserve_UnchangedValueDoesNotArm(t *testing.T) {
	r := &recorder{}
	c, sched := newTestCoordinator(t, r)

	c.Observe("same", true)
	c.Observe("same", true)
	c.Observe("same", true)
	assert.Equal(t, 0, sched.Pending())
}

func TestObserve_DisabledDefersUntilEnabled(t *testing.T) {
	r := &recorder{}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	c.Observe("v1", true)
	require.Equal(t, 1, sched.Pending())

	c.Observe("v2", false)
	assert.Equal(t, 0, sched.Pending(), "disabling cancels the pending save")
	sched.Advance(testDelay)
	c.Wait()
	assert.Empty(t, r.savedValues())

	c.Observe("v2", true)
	require.Equal(t, 1, sched.Pending(), "unsaved change is picked up once re-enabled")
	sched.Advance(testDelay)
	c.Wait()
	assert.Equal(t, []string{"v2"}, r.savedValues())
}

func TestObserve_DisablingDropsQueuedRerun(t *testing.T) {
	r := &recorder{gate: make(chan struct{}), start: make(chan string, 2)}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	c.Observe("v1", true)
	sched.Advance(testDelay)
	require.Equal(t, "v1", <-r.start)

	c.Observe("v2", true)
	sched.Advance(testDelay)
	require.Equal(t, 0, sched.Pending(), "timer fired while the first save was running")

	c.Observe("v2", false)
	r.gate <- struct{}{}
	c.Wait()
	assert.Equal(t, 0, sched.Pending(), "no follow-up save is armed while disabled")

	sched.Advance(testDelay * 3)
	c.Wait()
	assert.Equal(t, []string{"v1"}, r.savedValues())
	assert.True(t, c.Dirty())

	c.Observe("v2", true)
	require.Equal(t, 1, sched.Pending(), "re-enabling picks the unsaved value up again")
	sched.Advance(testDelay)
	require.Equal(t, "v2", <-r.start)
	r.gate <- struct{}{}
	c.Wait()
	assert.Equal(t, []string{"v1", "v2"}, r.savedValues())
}

func TestStop_CancelsPendingSave(t *testing.T) {
	r := &recorder{}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	c.Observe("v1", true)
	c.Stop()

	sched.Advance(testDelay * 3)
	c.Wait()
	assert.Empty(t, r.savedValues())
	assert.Equal(t, model.SaveStatusIdle, c.State().Status)
	assert.True(t, c.Stopped())

	c.Observe("v2", true)
	assert.Equal(t, 0, sched.Pending(), "observations after stop are ignored")
	_, err := c.SaveNow(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStop_DiscardsInFlightResult(t *testing.T) {
	r := &recorder{gate: make(chan struct{}), start: make(chan string, 1)}
	c, sched := newTestCoordinator(t, r)
	before := testutil.ToFloat64(savesTotal.WithLabelValues("discarded", triggerDebounce))

	c.Observe("v0", true)
	c.Observe("v1", true)
	sched.Advance(testDelay)
	assert.Equal(t, "v1", <-r.start)
	assert.Equal(t, model.SaveStatusSaving, c.State().Status)

	c.Stop()
	close(r.gate)
	c.Wait()

	assert.Equal(t, []string{"v1"}, r.savedValues(), "the save itself still completes")
	st := c.State()
	assert.Equal(t, model.SaveStatusIdle, st.Status)
	assert.Nil(t, st.LastSavedAt)
	assert.Equal(t, before+1, testutil.ToFloat64(savesTotal.WithLabelValues("discarded", triggerDebounce)))
}

func TestSave_FailureSetsErrorAndNextChangeRetries(t *testing.T) {
	r := &recorder{fail: errors.New("network down")}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	c.Observe("v1", true)
	sched.Advance(testDelay)
	c.Wait()

	st := c.State()
	assert.Equal(t, model.SaveStatusError, st.Status)
	assert.Equal(t, "network down", st.LastError)
	assert.Equal(t, 0, sched.Pending(), "failures are not retried on their own")
	assert.True(t, c.Dirty(), "a failed value still counts as unsaved")

	r.setFail(nil)
	c.Observe("v2", true)
	sched.Advance(testDelay)
	c.Wait()

	assert.Equal(t, []string{"v2"}, r.savedValues())
	assert.Equal(t, model.SaveStatusSaved, c.State().Status)
	assert.Equal(t, []model.SaveStatus{
		model.SaveStatusSaving, model.SaveStatusError,
		model.SaveStatusSaving, model.SaveStatusSaved,
	}, r.states)
}

func TestSave_ChangeDuringInFlightSaveRunsAgain(t *testing.T) {
	r := &recorder{gate: make(chan struct{}), start: make(chan string, 2)}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	c.Observe("v1", true)
	sched.Advance(testDelay)
	require.Equal(t, "v1", <-r.start)

	c.Observe("v2", true)
	sched.Advance(testDelay)
	assert.Equal(t, 0, sched.Pending(), "timer fired while the first save was running")

	r.gate <- struct{}{}
	c.Wait()
	assert.Equal(t, []string{"v1"}, r.savedValues())
	require.Equal(t, 1, sched.Pending(), "follow-up save is scheduled after the first one settles")

	sched.Advance(testDelay)
	require.Equal(t, "v2", <-r.start)
	r.gate <- struct{}{}
	c.Wait()
	assert.Equal(t, []string{"v1", "v2"}, r.savedValues())
}

func TestSaveNow(t *testing.T) {
	t.Run("before any observation", func(t *testing.T) {
		c, _ := newTestCoordinator(t, &recorder{})
		_, err := c.SaveNow(context.Background())
		assert.ErrorIs(t, err, ErrNotObserved)
	})

	t.Run("cancels pending autosave and saves latest", func(t *testing.T) {
		r := &recorder{}
		c, sched := newTestCoordinator(t, r)
		c.Observe("v0", true)
		c.Observe("v1", true)

		saved, err := c.SaveNow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v1", saved)
		assert.Equal(t, []string{"v1"}, r.savedValues())
		assert.Equal(t, 0, sched.Pending())

		sched.Advance(testDelay)
		c.Wait()
		assert.Equal(t, []string{"v1"}, r.savedValues(), "cancelled timer must not save twice")
	})

	t.Run("propagates failure", func(t *testing.T) {
		r := &recorder{fail: errors.New("conflict")}
		c, _ := newTestCoordinator(t, r)
		c.Observe("v0", false)

		_, err := c.SaveNow(context.Background())
		require.Error(t, err)
		assert.EqualError(t, err, "conflict")
		assert.Equal(t, model.SaveStatusError, c.State().Status)
	})
}

func TestCoordinator_RealScheduler(t *testing.T) {
	r := &recorder{}
	c := New(context.Background(), r.save, Config{Delay: 20 * time.Millisecond})
	defer c.Stop()

	c.Observe("v0", true)
	c.Observe("v1", true)

	assert.Eventually(t, func() bool {
		return len(r.savedValues()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	c.Wait()
	assert.Equal(t, model.SaveStatusSaved, c.State().Status)
}

func TestDelayFromConfig(t *testing.T) {
	assert.Equal(t, DefaultDelay, DelayFromConfig(model.AutosaveConfig{}))
	assert.Equal(t, 3*time.Second, DelayFromConfig(model.AutosaveConfig{DebounceSec: 3}))
}

func TestManualScheduler_StopPreventsRun(t *testing.T) {
	sched := NewManualScheduler(time.Time{})
	ran := false
	task := sched.AfterFunc(time.Second, func() { ran = true })
	assert.True(t, task.Stop())
	assert.False(t, task.Stop())
	sched.Advance(time.Minute)
	assert.False(t, ran)
}

func TestRebase_TreatsValueAsSaved(t *testing.T) {
	r := &recorder{}
	c, sched := newTestCoordinator(t, r)

	c.Observe("v0", true)
	c.Observe("v1", true)
	require.Equal(t, 1, sched.Pending())

	c.Rebase("canonical")
	assert.Equal(t, 0, sched.Pending())
	c.Observe("canonical", true)
	assert.Equal(t, 0, sched.Pending(), "rebased value is not a change")

	c.Observe("v2", true)
	sched.Advance(testDelay)
	c.Wait()
	assert.Equal(t, []string{"v2"}, r.savedValues())
}

func TestRebaseIfLatest(t *testing.T) {
	t.Run("unchanged since save", func(t *testing.T) {
		r := &recorder{}
		c, sched := newTestCoordinator(t, r)
		c.Observe("v0", true)
		c.Observe("v1", true)
		saved, err := c.SaveNow(context.Background())
		require.NoError(t, err)

		assert.True(t, c.RebaseIfLatest(saved, "v1-canonical"))
		c.Observe("v1-canonical", true)
		assert.Equal(t, 0, sched.Pending())
		assert.False(t, c.Dirty())
	})

	t.Run("changed since save", func(t *testing.T) {
		r := &recorder{}
		c, sched := newTestCoordinator(t, r)
		c.Observe("v0", true)
		c.Observe("v1", true)
		saved, err := c.SaveNow(context.Background())
		require.NoError(t, err)
		c.Observe("v2", true)

		assert.False(t, c.RebaseIfLatest(saved, "v1-canonical"))
		assert.True(t, c.Dirty())
		require.Equal(t, 1, sched.Pending(), "the newer edit stays armed")
		sched.Advance(testDelay)
		c.Wait()
		assert.Equal(t, []string{"v1", "v2"}, r.savedValues())
	})
}

// Package session wires one open challenge draft to the schedule editor,
// the autosave coordinator and the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/msageha/challenge_editor/internal/autosave"
	"github.com/msageha/challenge_editor/internal/catalog"
	"github.com/msageha/challenge_editor/internal/events"
	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
	"github.com/msageha/challenge_editor/internal/schedule"
	"github.com/msageha/challenge_editor/internal/store"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

// Options are the collaborators of a Session. Store is required.
type Options struct {
	Config    model.Config
	Store     store.Adapter
	Catalog   *catalog.Client
	Bus       *events.Bus
	Logger    *logging.Logger
	Scheduler autosave.Scheduler
	Now       func() time.Time
}

// Session is the editor state for one draft. All methods are safe for
// concurrent use. Every edit re-resolves the schedule, writes it back into
// the draft and hands the draft to the autosave coordinator.
type Session struct {
	mu      sync.Mutex
	cfg     model.Config
	draft   model.ChallengeDraft
	editor  *schedule.Editor
	catalog *catalog.Client
	bus     *events.Bus
	log     *logging.Logger
	saver   *autosave.Coordinator[model.ChallengeDraft]
	closed  bool

	// lastSaved is written from the coordinator's save goroutine, so it has
	// its own lock rather than s.mu.
	savedMu   sync.Mutex
	lastSaved *model.SavedChallenge
}

// Open starts a session on draft. The resolved draft becomes the autosave
// baseline, so opening alone never triggers a save.
func Open(ctx context.Context, draft model.ChallengeDraft, opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	opts.Config.ApplyDefaults()
	resolver, err := schedule.NewResolverFromConfig(opts.Config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewClient(catalog.StaticSource{})
	}

	s := &Session{
		cfg:     opts.Config,
		draft:   draft.Clone(),
		catalog: opts.Catalog,
		bus:     opts.Bus,
		log:     opts.Logger.With("session"),
	}
	s.editor = schedule.NewEditor(resolver, draft.Phases, draft.StartDate)

	saveStore := opts.Store
	s.saver = autosave.New(ctx, func(ctx context.Context, d model.ChallengeDraft) error {
		saved, err := saveStore.Save(ctx, d)
		if err != nil {
			return err
		}
		s.savedMu.Lock()
		s.lastSaved = &saved
		s.savedMu.Unlock()
		return nil
	}, autosave.Config{
		Delay:     autosave.DelayFromConfig(opts.Config.Autosave),
		Scheduler: opts.Scheduler,
		Logger:    opts.Logger,
		Now:       opts.Now,
		OnChange:  s.publishSaveState,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncDraftLocked(s.editor.Schedule())
	s.draft.Milestone = schedule.ApplyGates(schedule.SettingsOf(s.draft)).Milestone
	s.saver.Rebase(s.draft.Clone())
	s.log.Infof("session_opened id=%s phases=%d autosave=%t", s.draft.ID, len(s.draft.Phases), s.cfg.Autosave.Enabled)
	return s, nil
}

// Draft returns a copy of the current form state.
func (s *Session) Draft() model.ChallengeDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Schedule returns the live resolved schedule.
func (s *Session) Schedule() schedule.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Schedule()
}

// SaveState returns the autosave indicator.
func (s *Session) SaveState() model.AutosaveState {
	return s.saver.State()
}

// Dirty reports whether the draft has edits that are not yet saved.
func (s *Session) Dirty() bool {
	return s.saver.Dirty()
}

// LastSaved returns the store's copy from the most recent successful save.
func (s *Session) LastSaved() (model.SavedChallenge, bool) {
	s.savedMu.Lock()
	defer s.savedMu.Unlock()
	if s.lastSaved == nil {
		return model.SavedChallenge{}, false
	}
	return *s.lastSaved, true
}

func (s *Session) SetBaseStartDate(date time.Time) (schedule.Schedule, error) {
	return s.editSchedule("set_start", func(e *schedule.Editor) schedule.Schedule {
		return e.SetBaseStartDate(date)
	})
}

func (s *Session) SetPhaseDuration(phaseID string, minutes float64) (schedule.Schedule, error) {
	return s.editSchedule("set_duration", func(e *schedule.Editor) schedule.Schedule {
		return e.SetPhaseDuration(phaseID, minutes)
	})
}

// AddPhase appends a catalog phase; an empty phaseID picks the first
// active phase not yet scheduled.
func (s *Session) AddPhase(ctx context.Context, phaseID string) (schedule.Schedule, error) {
	defs, err := s.catalog.Phases(ctx)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return s.editSchedule("add_phase", func(e *schedule.Editor) schedule.Schedule {
		return e.AddPhase(defs, phaseID)
	})
}

func (s *Session) RemovePhase(phaseID string) (schedule.Schedule, error) {
	return s.editSchedule("remove_phase", func(e *schedule.Editor) schedule.Schedule {
		return e.RemovePhase(phaseID)
	})
}

// ApplyTemplate replaces the phases with a timeline template's and records
// the template on the draft.
func (s *Session) ApplyTemplate(ctx context.Context, templateID string) (schedule.Schedule, error) {
	tpl, err := s.catalog.Template(ctx, templateID)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return s.editSchedule("apply_template", func(e *schedule.Editor) schedule.Schedule {
		s.draft.TimelineTemplateID = tpl.ID
		return e.ApplyTemplate(tpl)
	})
}

// SaveSchedule commits the live phases as the snapshot that ResetSchedule
// returns to.
func (s *Session) SaveSchedule() (schedule.Schedule, error) {
	sched, err := s.editSchedule("save_schedule", func(e *schedule.Editor) schedule.Schedule {
		return e.SaveSnapshot()
	})
	if err == nil {
		s.publish(events.EventSnapshotSaved, map[string]any{"phases": len(sched.Phases)})
	}
	return sched, err
}

// ResetSchedule discards phase edits made since the last snapshot.
func (s *Session) ResetSchedule() (schedule.Schedule, error) {
	sched, err := s.editSchedule("reset_schedule", func(e *schedule.Editor) schedule.Schedule {
		return e.ResetToSnapshot()
	})
	if err == nil && sched.Notice == "" {
		s.publish(events.EventSnapshotReset, map[string]any{"phases": len(sched.Phases)})
	}
	return sched, err
}

func (s *Session) SetSchedulingEnabled(enabled bool) error {
	return s.editSettings(func(st schedule.Settings) (schedule.Settings, error) {
		return schedule.SetSchedulingEnabled(st, enabled), nil
	})
}

func (s *Session) SetMilestoneEnabled(enabled bool) error {
	return s.editSettings(func(st schedule.Settings) (schedule.Settings, error) {
		return schedule.SetMilestoneEnabled(st, enabled), nil
	})
}

// SetMilestoneCount fails with schedule.ErrMilestonesDisabled unless
// milestones are enabled.
func (s *Session) SetMilestoneCount(count int) error {
	return s.editSettings(func(st schedule.Settings) (schedule.Settings, error) {
		return schedule.SetMilestoneCount(st, count)
	})
}

// SetMilestoneDurationDays fails with schedule.ErrMilestonesDisabled unless
// milestones are enabled.
func (s *Session) SetMilestoneDurationDays(days int) error {
	return s.editSettings(func(st schedule.Settings) (schedule.Settings, error) {
		return schedule.SetMilestoneDurationDays(st, days)
	})
}

// Update applies an edit to the non-schedule fields of the draft (name,
// description, prizes, tags). Changes fn makes to phases or the start date
// are re-resolved like any other schedule edit.
func (s *Session) Update(fn func(d *model.ChallengeDraft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := s.draft.Clone()
	fn(&next)
	s.draft = next
	s.draft.Milestone = schedule.ApplyGates(schedule.SettingsOf(s.draft)).Milestone
	sched := s.editor.Replace(s.draft.Phases, s.draft.StartDate)
	s.syncDraftLocked(sched)
	s.observeLocked()
	return nil
}

// ApplyExternal replaces the whole draft with one read from outside the
// editor (a reloaded file). It counts as an edit and is autosaved.
func (s *Session) ApplyExternal(d model.ChallengeDraft) (schedule.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schedule.Schedule{}, ErrClosed
	}
	if d.ID != s.draft.ID {
		return schedule.Schedule{}, fmt.Errorf("session: draft id changed from %q to %q", s.draft.ID, d.ID)
	}
	s.draft = d.Clone()
	s.draft.Milestone = schedule.ApplyGates(schedule.SettingsOf(s.draft)).Milestone
	sched := s.editor.Replace(d.Phases, d.StartDate)
	s.syncDraftLocked(sched)
	s.observeLocked()
	s.log.Infof("draft_reloaded id=%s phases=%d", s.draft.ID, len(sched.Phases))
	s.publish(events.EventDraftReloaded, map[string]any{"id": s.draft.ID, "error": sched.Error})
	return sched, nil
}

// Save validates the draft and saves it now, bypassing the debounce. On
// success the form is re-derived from the store's canonical copy. Unlike
// autosave, the error is returned to the caller.
func (s *Session) Save(ctx context.Context) (model.SavedChallenge, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.SavedChallenge{}, ErrClosed
	}
	if err := model.ValidateDraft(s.draft, s.cfg.Limits); err != nil {
		s.mu.Unlock()
		return model.SavedChallenge{}, err
	}
	if err := schedule.ValidateMilestone(s.draft.Milestone, s.cfg.Limits); err != nil {
		s.mu.Unlock()
		return model.SavedChallenge{}, fmt.Errorf("draft %s: %w", s.draft.ID, err)
	}
	if errs := schedule.ValidateSchedule(s.draft.Phases); errs.HasErrors() {
		s.log.Warnf("schedule_issues id=%s count=%d first=%q", s.draft.ID, len(errs.Errors), errs.Errors[0].Error())
	}
	s.observeLocked()
	id := s.draft.ID
	s.mu.Unlock()

	persisted, err := s.saver.SaveNow(ctx)
	if err != nil {
		s.log.Errorf("save_failed id=%s error=%v", id, err)
		return model.SavedChallenge{}, fmt.Errorf("session: save: %w", err)
	}
	saved, _ := s.LastSaved()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return saved, nil
	}
	// Edits made while the save was running stay in the form and remain
	// queued for autosave; only an untouched form takes the canonical copy.
	canonical := saved.Draft.Clone()
	resolved := s.editor.Resolver().Resolve(canonical.Phases, canonical.StartDate)
	canonical.Phases = resolved.Phases
	canonical.StartDate = resolved.BaseStartDate
	if !s.saver.RebaseIfLatest(persisted, canonical.Clone()) {
		s.log.Infof("draft_saved id=%s revision=%s pending_edits=true", saved.Draft.ID, saved.Revision)
		return saved, nil
	}
	s.draft = canonical
	sched := s.editor.Replace(s.draft.Phases, s.draft.StartDate)
	s.syncDraftLocked(sched)
	s.log.Infof("draft_saved id=%s revision=%s", saved.Draft.ID, saved.Revision)
	return saved, nil
}

// Close stops autosave. A save already running completes but no longer
// updates the session. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	id := s.draft.ID
	s.mu.Unlock()
	s.saver.Stop()
	s.log.Infof("session_closed id=%s", id)
}

// Wait blocks until no background save is running.
func (s *Session) Wait() { s.saver.Wait() }

func (s *Session) editSchedule(op string, fn func(e *schedule.Editor) schedule.Schedule) (schedule.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return schedule.Schedule{}, ErrClosed
	}
	sched := fn(s.editor)
	s.syncDraftLocked(sched)
	s.observeLocked()

	s.log.Debugf("schedule_edit op=%s phases=%d error=%q notice=%q", op, len(sched.Phases), sched.Error, sched.Notice)
	s.publish(events.EventScheduleResolved, map[string]any{
		"op":     op,
		"phases": len(sched.Phases),
		"error":  sched.Error,
		"notice": sched.Notice,
		"end":    sched.EndDate(),
	})
	return sched, nil
}

func (s *Session) editSettings(fn func(schedule.Settings) (schedule.Settings, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next, err := fn(schedule.SettingsOf(s.draft))
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	next.ApplyTo(&s.draft)
	s.observeLocked()
	return nil
}

func (s *Session) syncDraftLocked(sched schedule.Schedule) {
	s.draft.Phases = sched.Phases
	s.draft.StartDate = sched.BaseStartDate
}

func (s *Session) observeLocked() {
	s.saver.Observe(s.draft.Clone(), s.cfg.Autosave.Enabled)
}

func (s *Session) publishSaveState(st model.AutosaveState) {
	data := map[string]any{"status": string(st.Status)}
	if st.LastError != "" {
		data["error"] = st.LastError
	}
	if st.LastSavedAt != nil {
		data["saved_at"] = *st.LastSavedAt
	}
	s.publish(events.EventSaveStatusChanged, data)
}

func (s *Session) publish(t events.EventType, data map[string]any) {
	if s.bus != nil {
		s.bus.Publish(t, data)
	}
}

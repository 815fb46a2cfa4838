package schedule

import (
	"fmt"
	"time"

	"github.com/msageha/challenge_editor/internal/model"
)

// SetBaseStartDate re-resolves every phase against a new base date.
// Durations and predecessors are untouched.
func (r *Resolver) SetBaseStartDate(s Schedule, date time.Time) Schedule {
	return r.Resolve(s.Phases, date)
}

// SetPhaseDuration replaces one phase's duration (clamped) and re-resolves
// the whole list, since later phases may shift.
func (r *Resolver) SetPhaseDuration(s Schedule, phaseID string, minutes float64) Schedule {
	idx := indexOfPhase(s.Phases, phaseID)
	if idx < 0 {
		return withNotice(s, fmt.Sprintf("phase %q is not in the schedule", phaseID))
	}
	phases := model.ClonePhases(s.Phases)
	phases[idx].Duration = r.bounds.Clamp(minutes)
	return r.Resolve(phases, s.BaseStartDate)
}

// AddPhase appends a catalog phase with the policy-minimum duration, chained
// after the current last phase. An empty phaseID picks the first active
// catalog entry not yet scheduled. When every active entry is already
// present, or the requested entry cannot be added, s is returned unchanged
// with a Notice.
func (r *Resolver) AddPhase(s Schedule, catalog []model.PhaseDefinition, phaseID string) Schedule {
	present := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		present[p.PhaseID] = true
	}

	var available []model.PhaseDefinition
	for _, def := range catalog {
		if def.IsActive && !present[def.ID] {
			available = append(available, def)
		}
	}
	if len(available) == 0 {
		return withNotice(s, "all available phases have already been added")
	}

	var def model.PhaseDefinition
	if phaseID == "" {
		def = available[0]
	} else {
		found := false
		for _, d := range catalog {
			if d.ID == phaseID {
				def, found = d, true
				break
			}
		}
		switch {
		case !found:
			return withNotice(s, fmt.Sprintf("phase %q is not in the phase catalog", phaseID))
		case present[phaseID]:
			return withNotice(s, fmt.Sprintf("phase %q is already in the schedule", phaseID))
		case !def.IsActive:
			return withNotice(s, fmt.Sprintf("phase %q is not active", phaseID))
		}
	}

	next := model.Phase{
		PhaseID:  def.ID,
		Name:     def.Name,
		Duration: r.bounds.Min,
	}
	if n := len(s.Phases); n > 0 {
		next.Predecessor = s.Phases[n-1].PhaseID
	}
	phases := append(model.ClonePhases(s.Phases), next)
	return r.Resolve(phases, s.BaseStartDate)
}

// RemovePhase drops a phase by ID and re-resolves the rest. Phases that
// referenced it are not relinked; they degrade to fallback placement.
func (r *Resolver) RemovePhase(s Schedule, phaseID string) Schedule {
	idx := indexOfPhase(s.Phases, phaseID)
	if idx < 0 {
		return withNotice(s, fmt.Sprintf("phase %q is not in the schedule", phaseID))
	}
	phases := make([]model.Phase, 0, len(s.Phases)-1)
	phases = append(phases, s.Phases[:idx]...)
	phases = append(phases, s.Phases[idx+1:]...)
	return r.Resolve(phases, s.BaseStartDate)
}

// ApplyTemplate replaces the schedule with the template's active phases,
// ordered so that predecessors come first, and resolves them at base.
func (r *Resolver) ApplyTemplate(tpl model.TimelineTemplate, base time.Time) Schedule {
	phases := make([]model.Phase, 0, len(tpl.Phases))
	for _, tp := range tpl.Phases {
		if !tp.IsActive {
			continue
		}
		phases = append(phases, model.Phase{
			PhaseID:     tp.PhaseID,
			Name:        tp.Name,
			Duration:    tp.Duration,
			Predecessor: tp.Predecessor,
		})
	}
	ordered, err := OrderByPredecessors(phases)
	s := r.Resolve(ordered, base)
	if err != nil {
		s.Notice = fmt.Sprintf("template %q: %v", tpl.ID, err)
	}
	return s
}

func indexOfPhase(phases []model.Phase, phaseID string) int {
	for i, p := range phases {
		if p.PhaseID == phaseID {
			return i
		}
	}
	return -1
}

func withNotice(s Schedule, notice string) Schedule {
	out := s.Clone()
	out.Notice = notice
	return out
}

// Editor holds the live schedule together with the last explicitly saved
// snapshot. It replaces both values wholesale on every operation and is not
// safe for concurrent use; the owning session serialises access.
type Editor struct {
	resolver *Resolver
	live     Schedule
	saved    Schedule
	hasSaved bool
}

// NewEditor resolves phases at base and, when that resolve is clean, takes
// it as the initial snapshot.
func NewEditor(r *Resolver, phases []model.Phase, base time.Time) *Editor {
	if r == nil {
		r = defaultResolver
	}
	e := &Editor{resolver: r}
	e.install(r.Resolve(phases, base))
	return e
}

func (e *Editor) Resolver() *Resolver { return e.resolver }

// Schedule returns a copy of the live schedule.
func (e *Editor) Schedule() Schedule { return e.live.Clone() }

// Snapshot returns a copy of the saved snapshot, if one exists.
func (e *Editor) Snapshot() (Schedule, bool) {
	if !e.hasSaved {
		return Schedule{}, false
	}
	return e.saved.Clone(), true
}

func (e *Editor) SetBaseStartDate(date time.Time) Schedule {
	return e.install(e.resolver.SetBaseStartDate(e.live, date))
}

func (e *Editor) SetPhaseDuration(phaseID string, minutes float64) Schedule {
	return e.install(e.resolver.SetPhaseDuration(e.live, phaseID, minutes))
}

func (e *Editor) AddPhase(catalog []model.PhaseDefinition, phaseID string) Schedule {
	return e.install(e.resolver.AddPhase(e.live, catalog, phaseID))
}

func (e *Editor) RemovePhase(phaseID string) Schedule {
	return e.install(e.resolver.RemovePhase(e.live, phaseID))
}

func (e *Editor) ApplyTemplate(tpl model.TimelineTemplate) Schedule {
	return e.install(e.resolver.ApplyTemplate(tpl, e.live.BaseStartDate))
}

// Replace installs phases that arrived from outside the editor (a reloaded
// draft) and resolves them at base.
func (e *Editor) Replace(phases []model.Phase, base time.Time) Schedule {
	return e.install(e.resolver.Resolve(phases, base))
}

// SaveSnapshot re-resolves the live phases and stores the result as the
// new snapshot.
func (e *Editor) SaveSnapshot() Schedule {
	s := e.resolver.Resolve(e.live.Phases, e.live.BaseStartDate)
	e.live = s
	e.saved = s.Clone()
	e.hasSaved = true
	return s.Clone()
}

// ResetToSnapshot re-resolves the snapshot against the current base start
// date and installs it as the live schedule.
func (e *Editor) ResetToSnapshot() Schedule {
	if !e.hasSaved {
		return e.install(withNotice(e.live, "there is no saved schedule to reset to"))
	}
	return e.install(e.resolver.Resolve(e.saved.Phases, e.live.BaseStartDate))
}

func (e *Editor) install(s Schedule) Schedule {
	e.live = s
	if !e.hasSaved && s.Error == "" {
		e.saved = s.Clone()
		e.saved.Notice = ""
		e.hasSaved = true
	}
	return s.Clone()
}

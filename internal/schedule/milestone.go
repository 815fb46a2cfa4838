package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/msageha/challenge_editor/internal/model"
)

// ErrMilestonesDisabled is returned when a milestone field is set while
// milestones are off; the gate would clear the value immediately.
var ErrMilestonesDisabled = errors.New("milestones are disabled")

// Settings is the pair of coupled toggles: the scheduling switch and the
// milestone sub-schedule that depends on it.
type Settings struct {
	SchedulingEnabled bool
	Milestone         model.MilestoneConfig
}

func SettingsOf(d model.ChallengeDraft) Settings {
	return Settings{SchedulingEnabled: d.SchedulingEnabled, Milestone: d.Milestone}
}

// ApplyTo writes the settings back into a draft.
func (s Settings) ApplyTo(d *model.ChallengeDraft) {
	d.SchedulingEnabled = s.SchedulingEnabled
	d.Milestone = s.Milestone
}

type gatedField string

const (
	fieldMilestoneEnabled      gatedField = "milestone.enabled"
	fieldMilestoneCount        gatedField = "milestone.count"
	fieldMilestoneDurationDays gatedField = "milestone.duration_days"
)

// gatingRule resets fields whenever its switch is off.
type gatingRule struct {
	name         string
	whenDisabled func(Settings) bool
	reset        []gatedField
}

var gatingRules = []gatingRule{
	{
		name:         "scheduling",
		whenDisabled: func(s Settings) bool { return !s.SchedulingEnabled },
		reset:        []gatedField{fieldMilestoneEnabled},
	},
	{
		name:         "milestones",
		whenDisabled: func(s Settings) bool { return !s.Milestone.Enabled },
		reset:        []gatedField{fieldMilestoneCount, fieldMilestoneDurationDays},
	},
}

func resetField(s *Settings, f gatedField) bool {
	switch f {
	case fieldMilestoneEnabled:
		changed := s.Milestone.Enabled
		s.Milestone.Enabled = false
		return changed
	case fieldMilestoneCount:
		changed := s.Milestone.Count != 0
		s.Milestone.Count = 0
		return changed
	case fieldMilestoneDurationDays:
		changed := s.Milestone.DurationDays != 0
		s.Milestone.DurationDays = 0
		return changed
	}
	return false
}

// ApplyGates evaluates the constraint table until nothing changes and
// returns the settled value. Resetting one field can disable another
// switch, so rules are re-run until a full pass makes no change.
func ApplyGates(s Settings) Settings {
	for range len(gatingRules) + 1 {
		changed := false
		for _, rule := range gatingRules {
			if !rule.whenDisabled(s) {
				continue
			}
			for _, f := range rule.reset {
				if resetField(&s, f) {
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return s
}

func SetSchedulingEnabled(s Settings, enabled bool) Settings {
	s.SchedulingEnabled = enabled
	return ApplyGates(s)
}

func SetMilestoneEnabled(s Settings, enabled bool) Settings {
	s.Milestone.Enabled = enabled
	return ApplyGates(s)
}

// SetMilestoneCount sets the number of milestones. Milestones must be
// enabled first; otherwise s is returned unchanged with ErrMilestonesDisabled.
func SetMilestoneCount(s Settings, count int) (Settings, error) {
	if !s.Milestone.Enabled {
		return s, ErrMilestonesDisabled
	}
	s.Milestone.Count = count
	return ApplyGates(s), nil
}

// SetMilestoneDurationDays sets the length of each milestone window, with
// the same precondition as SetMilestoneCount.
func SetMilestoneDurationDays(s Settings, days int) (Settings, error) {
	if !s.Milestone.Enabled {
		return s, ErrMilestonesDisabled
	}
	s.Milestone.DurationDays = days
	return ApplyGates(s), nil
}

// ValidateMilestone requires a positive count and duration when milestones
// are enabled, and a count no larger than limits.MaxMilestones (the default
// when unset).
func ValidateMilestone(cfg model.MilestoneConfig, limits model.LimitsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	maxCount := limits.MaxMilestones
	if maxCount <= 0 {
		maxCount = model.DefaultMaxMilestones
	}
	if cfg.Count <= 0 {
		return fmt.Errorf("milestone count must be positive, got %d", cfg.Count)
	}
	if cfg.Count > maxCount {
		return fmt.Errorf("milestone count %d exceeds the limit of %d", cfg.Count, maxCount)
	}
	if cfg.DurationDays <= 0 {
		return fmt.Errorf("milestone duration must be positive, got %d days", cfg.DurationDays)
	}
	return nil
}

// MilestoneDeadlines lists the end of each milestone window counted from
// start. It returns nil when milestones are disabled or invalid, or when
// the count is above model.MilestoneCountCeiling.
func MilestoneDeadlines(start time.Time, cfg model.MilestoneConfig) []time.Time {
	if !cfg.Enabled || ValidateMilestone(cfg, model.LimitsConfig{MaxMilestones: model.MilestoneCountCeiling}) != nil {
		return nil
	}
	step := DaysToMinutes(cfg.DurationDays)
	out := make([]time.Time, 0, cfg.Count)
	for k := 1; k <= cfg.Count; k++ {
		out = append(out, AddMinutes(start, k*step))
	}
	return out
}

package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/msageha/challenge_editor/internal/model"
)

func TestSetSchedulingEnabled_ForcesMilestonesOff(t *testing.T) {
	s := Settings{
		SchedulingEnabled: true,
		Milestone:         model.MilestoneConfig{Enabled: true, Count: 3, DurationDays: 2},
	}
	out := SetSchedulingEnabled(s, false)
	if out.SchedulingEnabled {
		t.Error("scheduling should be disabled")
	}
	if out.Milestone.Enabled {
		t.Error("milestone.enabled should be forced to false in the same update")
	}
	if out.Milestone.Count != 0 || out.Milestone.DurationDays != 0 {
		t.Errorf("milestone fields should be cleared, got %+v", out.Milestone)
	}
}

func TestSetMilestoneEnabled_Off_ClearsFields(t *testing.T) {
	s := Settings{
		SchedulingEnabled: true,
		Milestone:         model.MilestoneConfig{Enabled: true, Count: 3, DurationDays: 2},
	}
	out := SetMilestoneEnabled(s, false)
	if out.Milestone != (model.MilestoneConfig{}) {
		t.Errorf("expected cleared milestone config, got %+v", out.Milestone)
	}
	again := SetMilestoneEnabled(out, true)
	if again.Milestone.Count != 0 || again.Milestone.DurationDays != 0 {
		t.Error("stale values resurfaced after re-enabling")
	}
}

func TestSetMilestoneEnabled_RequiresScheduling(t *testing.T) {
	out := SetMilestoneEnabled(Settings{SchedulingEnabled: false}, true)
	if out.Milestone.Enabled {
		t.Error("milestones cannot be enabled while scheduling is disabled")
	}
}

func TestSetMilestoneCountAndDuration(t *testing.T) {
	s := SetMilestoneEnabled(Settings{SchedulingEnabled: true}, true)
	s, err := SetMilestoneCount(s, 2)
	if err != nil {
		t.Fatalf("SetMilestoneCount: %v", err)
	}
	s, err = SetMilestoneDurationDays(s, 7)
	if err != nil {
		t.Fatalf("SetMilestoneDurationDays: %v", err)
	}
	if s.Milestone != (model.MilestoneConfig{Enabled: true, Count: 2, DurationDays: 7}) {
		t.Errorf("got %+v", s.Milestone)
	}
	if err := ValidateMilestone(s.Milestone, model.LimitsConfig{}); err != nil {
		t.Errorf("expected valid milestone config, got %v", err)
	}
}

func TestSetMilestoneFields_RequireMilestonesEnabled(t *testing.T) {
	s := Settings{SchedulingEnabled: true}
	out, err := SetMilestoneCount(s, 4)
	if !errors.Is(err, ErrMilestonesDisabled) {
		t.Errorf("SetMilestoneCount: got %v, want ErrMilestonesDisabled", err)
	}
	if out != s {
		t.Errorf("settings changed on rejection: %+v", out)
	}
	if _, err := SetMilestoneDurationDays(s, 3); !errors.Is(err, ErrMilestonesDisabled) {
		t.Errorf("SetMilestoneDurationDays: got %v, want ErrMilestonesDisabled", err)
	}
}

func TestSettings_DraftRoundTrip(t *testing.T) {
	d := model.NewDraft("chl_1771722000_a3f2b7c1", "x")
	d.Milestone = model.MilestoneConfig{Enabled: true, Count: 1, DurationDays: 1}
	s := SetSchedulingEnabled(SettingsOf(d), false)
	s.ApplyTo(&d)
	if d.SchedulingEnabled || d.Milestone.Enabled {
		t.Errorf("draft not updated: %+v", d)
	}
}

func TestValidateMilestone(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.MilestoneConfig
		ok   bool
	}{
		{"disabled", model.MilestoneConfig{}, true},
		{"valid", model.MilestoneConfig{Enabled: true, Count: 1, DurationDays: 1}, true},
		{"missing count", model.MilestoneConfig{Enabled: true, DurationDays: 1}, false},
		{"missing duration", model.MilestoneConfig{Enabled: true, Count: 1}, false},
		{"negative", model.MilestoneConfig{Enabled: true, Count: -1, DurationDays: 1}, false},
		{"at default limit", model.MilestoneConfig{Enabled: true, Count: model.DefaultMaxMilestones, DurationDays: 1}, true},
		{"over default limit", model.MilestoneConfig{Enabled: true, Count: model.DefaultMaxMilestones + 1, DurationDays: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMilestone(tt.cfg, model.LimitsConfig{})
			if (err == nil) != tt.ok {
				t.Errorf("ValidateMilestone(%+v) = %v", tt.cfg, err)
			}
		})
	}
}

func TestMilestoneDeadlines(t *testing.T) {
	got := MilestoneDeadlines(baseT, model.MilestoneConfig{Enabled: true, Count: 3, DurationDays: 2})
	if len(got) != 3 {
		t.Fatalf("expected 3 deadlines, got %d", len(got))
	}
	for i, d := range got {
		want := baseT.Add(time.Duration(i+1) * 48 * time.Hour)
		if !d.Equal(want) {
			t.Errorf("deadline %d: got %v, want %v", i, d, want)
		}
	}
	if MilestoneDeadlines(baseT, model.MilestoneConfig{Enabled: true}) != nil {
		t.Error("invalid config should yield no deadlines")
	}
	huge := model.MilestoneConfig{Enabled: true, Count: 1 << 40, DurationDays: 1}
	if MilestoneDeadlines(baseT, huge) != nil {
		t.Error("a count above the ceiling should yield no deadlines")
	}
}

func TestValidateMilestone_ConfiguredLimit(t *testing.T) {
	cfg := model.MilestoneConfig{Enabled: true, Count: 5, DurationDays: 1}
	if err := ValidateMilestone(cfg, model.LimitsConfig{MaxMilestones: 4}); err == nil {
		t.Error("expected count 5 to exceed a limit of 4")
	}
	if err := ValidateMilestone(cfg, model.LimitsConfig{MaxMilestones: 5}); err != nil {
		t.Errorf("count at the limit: %v", err)
	}
}

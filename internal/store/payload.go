package store

import (
	"fmt"
	"time"

	"github.com/msageha/challenge_editor/internal/model"
	"github.com/msageha/challenge_editor/internal/schedule"
)

// Payload is the wire form of a draft: durations in seconds and timestamps
// as RFC 3339 strings. Converting a draft to a payload and back normalises
// it (UTC timestamps, schema header restored) rather than returning an
// identical value.
type Payload struct {
	ID                 string           `json:"id" yaml:"id"`
	Name               string           `json:"name" yaml:"name"`
	TypeID             string           `json:"typeId,omitempty" yaml:"type_id,omitempty"`
	TrackID            string           `json:"trackId,omitempty" yaml:"track_id,omitempty"`
	Description        string           `json:"description,omitempty" yaml:"description,omitempty"`
	TimelineTemplateID string           `json:"timelineTemplateId,omitempty" yaml:"timeline_template_id,omitempty"`
	SchedulingEnabled  bool             `json:"schedulingEnabled" yaml:"scheduling_enabled"`
	StartDate          string           `json:"startDate,omitempty" yaml:"start_date,omitempty"`
	Phases             []PhasePayload   `json:"phases" yaml:"phases"`
	Milestone          MilestonePayload `json:"milestone" yaml:"milestone"`
	Prizes             []PrizePayload   `json:"prizeSets,omitempty" yaml:"prize_sets,omitempty"`
	Tags               []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Updated            string           `json:"updated,omitempty" yaml:"updated,omitempty"`
}

type PhasePayload struct {
	PhaseID            string `json:"phaseId" yaml:"phase_id"`
	Name               string `json:"name,omitempty" yaml:"name,omitempty"`
	Duration           int64  `json:"duration" yaml:"duration"` // seconds
	Predecessor        string `json:"predecessor,omitempty" yaml:"predecessor,omitempty"`
	ScheduledStartDate string `json:"scheduledStartDate,omitempty" yaml:"scheduled_start_date,omitempty"`
	ScheduledEndDate   string `json:"scheduledEndDate,omitempty" yaml:"scheduled_end_date,omitempty"`
}

type MilestonePayload struct {
	Enabled  bool  `json:"enabled" yaml:"enabled"`
	Count    int   `json:"count,omitempty" yaml:"count,omitempty"`
	Duration int64 `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds per milestone
}

type PrizePayload struct {
	Type   string  `json:"type" yaml:"type"`
	Place  int     `json:"place" yaml:"place"`
	Amount float64 `json:"value" yaml:"value"`
}

const prizeTypeCheckpoint = "checkpoint"

// ToPayload converts a draft to its wire form. Derived per-phase state
// (status, open flag) is not sent.
func ToPayload(d model.ChallengeDraft) Payload {
	p := Payload{
		ID:                 d.ID,
		Name:               d.Name,
		TypeID:             d.TypeID,
		TrackID:            d.TrackID,
		Description:        d.Description,
		TimelineTemplateID: d.TimelineTemplateID,
		SchedulingEnabled:  d.SchedulingEnabled,
		StartDate:          formatTime(d.StartDate),
		Phases:             make([]PhasePayload, 0, len(d.Phases)),
		Milestone: MilestonePayload{
			Enabled:  d.Milestone.Enabled,
			Count:    d.Milestone.Count,
			Duration: schedule.MinutesToSeconds(schedule.DaysToMinutes(d.Milestone.DurationDays)),
		},
		Tags:    append([]string(nil), d.Tags...),
		Updated: formatTime(d.UpdatedAt),
	}
	for _, ph := range d.Phases {
		p.Phases = append(p.Phases, PhasePayload{
			PhaseID:            ph.PhaseID,
			Name:               ph.Name,
			Duration:           schedule.MinutesToSeconds(ph.Duration),
			Predecessor:        ph.Predecessor,
			ScheduledStartDate: formatTime(ph.ScheduledStartDate),
			ScheduledEndDate:   formatTime(ph.ScheduledEndDate),
		})
	}
	for _, prize := range d.CheckpointPrizes {
		p.Prizes = append(p.Prizes, PrizePayload{Type: prizeTypeCheckpoint, Place: prize.Place, Amount: prize.Amount})
	}
	return p
}

// FromPayload converts a wire payload back into a draft. Prize sets of
// other types are ignored.
func FromPayload(p Payload) (model.ChallengeDraft, error) {
	d := model.NewDraft(p.ID, p.Name)
	d.TypeID = p.TypeID
	d.TrackID = p.TrackID
	d.Description = p.Description
	d.TimelineTemplateID = p.TimelineTemplateID
	d.SchedulingEnabled = p.SchedulingEnabled

	var err error
	if d.StartDate, err = parseTime("startDate", p.StartDate); err != nil {
		return model.ChallengeDraft{}, err
	}
	if d.UpdatedAt, err = parseTime("updated", p.Updated); err != nil {
		return model.ChallengeDraft{}, err
	}

	d.Milestone = model.MilestoneConfig{
		Enabled:      p.Milestone.Enabled,
		Count:        p.Milestone.Count,
		DurationDays: int(p.Milestone.Duration / (24 * 60 * 60)),
	}

	d.Phases = make([]model.Phase, 0, len(p.Phases))
	for i, pp := range p.Phases {
		ph := model.Phase{
			PhaseID:     pp.PhaseID,
			Name:        pp.Name,
			Duration:    schedule.SecondsToMinutes(pp.Duration),
			Predecessor: pp.Predecessor,
		}
		field := fmt.Sprintf("phases[%d]", i)
		if ph.ScheduledStartDate, err = parseTime(field+".scheduledStartDate", pp.ScheduledStartDate); err != nil {
			return model.ChallengeDraft{}, err
		}
		if ph.ScheduledEndDate, err = parseTime(field+".scheduledEndDate", pp.ScheduledEndDate); err != nil {
			return model.ChallengeDraft{}, err
		}
		d.Phases = append(d.Phases, ph)
	}

	for _, prize := range p.Prizes {
		if prize.Type != prizeTypeCheckpoint {
			continue
		}
		d.CheckpointPrizes = append(d.CheckpointPrizes, model.Prize{Place: prize.Place, Amount: prize.Amount})
	}
	if len(p.Tags) > 0 {
		d.Tags = append([]string(nil), p.Tags...)
	}
	return d, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: payload %s: %w", field, err)
	}
	return t.UTC(), nil
}

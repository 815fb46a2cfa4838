package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/challenge_editor/internal/model"
)

var baseT = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleDraft() model.ChallengeDraft {
	d := model.NewDraft("chl_launch", "Launch Challenge")
	d.TypeID = "design"
	d.TimelineTemplateID = "standard"
	d.StartDate = baseT
	d.Phases = []model.Phase{
		{PhaseID: "registration", Name: "Registration", Duration: 60, ScheduledStartDate: baseT, ScheduledEndDate: baseT.Add(time.Hour), Status: "scheduled", IsOpen: true},
		{PhaseID: "submission", Name: "Submission", Duration: 90, Predecessor: "registration", ScheduledStartDate: baseT.Add(time.Hour), ScheduledEndDate: baseT.Add(150 * time.Minute)},
	}
	d.Milestone = model.MilestoneConfig{Enabled: true, Count: 2, DurationDays: 3}
	d.CheckpointPrizes = []model.Prize{{Place: 1, Amount: 100}, {Place: 2, Amount: 50}}
	d.Tags = []string{"ui"}
	return d
}

func TestToPayload_Units(t *testing.T) {
	p := ToPayload(sampleDraft())

	require.Len(t, p.Phases, 2)
	assert.Equal(t, int64(3600), p.Phases[0].Duration)
	assert.Equal(t, int64(5400), p.Phases[1].Duration)
	assert.Equal(t, "2026-03-01T09:00:00Z", p.StartDate)
	assert.Equal(t, "2026-03-01T10:00:00Z", p.Phases[0].ScheduledEndDate)
	assert.Equal(t, int64(3*24*3600), p.Milestone.Duration)
	require.Len(t, p.Prizes, 2)
	assert.Equal(t, "checkpoint", p.Prizes[0].Type)
	assert.Empty(t, p.Updated, "zero timestamps are omitted")
}

func TestPayload_RoundTripNormalises(t *testing.T) {
	in := sampleDraft()
	in.StartDate = time.Date(2026, 3, 1, 18, 0, 0, 0, time.FixedZone("JST", 9*3600))

	out, err := FromPayload(ToPayload(in))
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, model.DraftFileType, out.FileType)
	assert.True(t, out.StartDate.Equal(in.StartDate))
	assert.Equal(t, time.UTC, out.StartDate.Location())
	assert.Equal(t, []int{60, 90}, []int{out.Phases[0].Duration, out.Phases[1].Duration})
	assert.Equal(t, "registration", out.Phases[1].Predecessor)
	assert.Empty(t, out.Phases[0].Status, "derived phase state is not persisted")
	assert.False(t, out.Phases[0].IsOpen)
	assert.Equal(t, in.Milestone, out.Milestone)
	assert.Equal(t, in.CheckpointPrizes, out.CheckpointPrizes)
	assert.Equal(t, in.Tags, out.Tags)
}

func TestFromPayload_IgnoresOtherPrizeTypes(t *testing.T) {
	p := ToPayload(sampleDraft())
	p.Prizes = append(p.Prizes, PrizePayload{Type: "placement", Place: 1, Amount: 1000})

	out, err := FromPayload(p)
	require.NoError(t, err)
	assert.Len(t, out.CheckpointPrizes, 2)
}

func TestFromPayload_BadTimestamp(t *testing.T) {
	p := ToPayload(sampleDraft())
	p.Phases[1].ScheduledEndDate = "tomorrow"

	_, err := FromPayload(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phases[1].scheduledEndDate")
}

func TestFromPayload_SubMinuteSecondsTruncate(t *testing.T) {
	p := Payload{ID: "x", Phases: []PhasePayload{{PhaseID: "a", Duration: 150}}}
	out, err := FromPayload(p)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Phases[0].Duration)
}

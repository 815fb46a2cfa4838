package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DraftSchemaVersion = 1
	DraftFileType      = "challenge_draft"
)

// ChallengeDraft is the editor's complete form state. It is the value the
// autosave coordinator observes and the persistence adapter writes.
type ChallengeDraft struct {
	SchemaVersion      int             `yaml:"schema_version" json:"schemaVersion"`
	FileType           string          `yaml:"file_type" json:"fileType"`
	ID                 string          `yaml:"id" json:"id"`
	Name               string          `yaml:"name" json:"name"`
	TypeID             string          `yaml:"type_id,omitempty" json:"typeId,omitempty"`
	TrackID            string          `yaml:"track_id,omitempty" json:"trackId,omitempty"`
	Description        string          `yaml:"description,omitempty" json:"description,omitempty"`
	TimelineTemplateID string          `yaml:"timeline_template_id,omitempty" json:"timelineTemplateId,omitempty"`
	SchedulingEnabled  bool            `yaml:"scheduling_enabled" json:"schedulingEnabled"`
	StartDate          time.Time       `yaml:"start_date" json:"startDate"`
	Phases             []Phase         `yaml:"phases" json:"phases"`
	Milestone          MilestoneConfig `yaml:"milestone" json:"milestone"`
	CheckpointPrizes   []Prize         `yaml:"checkpoint_prizes,omitempty" json:"checkpointPrizes,omitempty"`
	Tags               []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	UpdatedAt          time.Time       `yaml:"updated_at" json:"updatedAt"`
}

type Prize struct {
	Place  int     `yaml:"place" json:"place"`
	Amount float64 `yaml:"amount" json:"amount"`
}

// SavedChallenge is the backing store's canonical copy of a draft.
type SavedChallenge struct {
	Draft    ChallengeDraft `yaml:"draft" json:"draft"`
	Revision string         `yaml:"revision" json:"revision"`
	SavedAt  time.Time      `yaml:"saved_at" json:"savedAt"`
}

// NewDraft returns an empty draft with the schema header filled in.
func NewDraft(id, name string) ChallengeDraft {
	return ChallengeDraft{
		SchemaVersion:     DraftSchemaVersion,
		FileType:          DraftFileType,
		ID:                id,
		Name:              name,
		SchedulingEnabled: true,
	}
}

// Clone returns a deep copy so observers never share slices with the live form.
func (d ChallengeDraft) Clone() ChallengeDraft {
	out := d
	out.Phases = ClonePhases(d.Phases)
	if d.CheckpointPrizes != nil {
		out.CheckpointPrizes = append([]Prize(nil), d.CheckpointPrizes...)
	}
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	return out
}

// ValidateDraft checks editor policy that is independent of the schedule
// graph. Structural schedule problems are reported by the resolver instead.
func ValidateDraft(d ChallengeDraft, limits LimitsConfig) error {
	var errs []string
	if d.SchemaVersion != DraftSchemaVersion {
		errs = append(errs, fmt.Sprintf("unsupported schema_version %d", d.SchemaVersion))
	}
	if d.FileType != DraftFileType {
		errs = append(errs, fmt.Sprintf("file_type %q is not %q", d.FileType, DraftFileType))
	}
	if strings.TrimSpace(d.ID) == "" {
		errs = append(errs, "id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "name is required")
	}
	max := limits.MaxCheckpointPrizes
	if max <= 0 {
		max = DefaultMaxCheckpointPrizes
	}
	if len(d.CheckpointPrizes) > max {
		errs = append(errs, fmt.Sprintf("checkpoint_prizes: %d exceeds maximum of %d", len(d.CheckpointPrizes), max))
	}
	for i, p := range d.CheckpointPrizes {
		if p.Amount <= 0 {
			errs = append(errs, fmt.Sprintf("checkpoint_prizes[%d].amount must be positive", i))
		}
	}
	if d.Milestone.Enabled {
		if !d.SchedulingEnabled {
			errs = append(errs, "milestone.enabled requires scheduling_enabled")
		}
		if d.Milestone.Count <= 0 {
			errs = append(errs, "milestone.count must be positive when milestones are enabled")
		}
		if d.Milestone.DurationDays <= 0 {
			errs = append(errs, "milestone.duration_days must be positive when milestones are enabled")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("draft %s: %s", d.ID, strings.Join(errs, "; "))
	}
	return nil
}

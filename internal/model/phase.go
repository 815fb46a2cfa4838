package model

import "time"

const (
	CatalogSchemaVersion = 1
	CatalogFileType      = "phase_catalog"
)

// PhaseCatalog is the on-disk form of the phase catalog and the timeline
// templates built from it.
type PhaseCatalog struct {
	SchemaVersion int                `yaml:"schema_version" json:"schemaVersion"`
	FileType      string             `yaml:"file_type" json:"fileType"`
	Phases        []PhaseDefinition  `yaml:"phases" json:"phases"`
	Templates     []TimelineTemplate `yaml:"templates" json:"templates"`
}

// PhaseDefinition is an entry of the remote phase catalog.
type PhaseDefinition struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	IsActive bool   `yaml:"is_active" json:"isActive"`
}

type TimelineTemplate struct {
	ID     string          `yaml:"id" json:"id"`
	Name   string          `yaml:"name" json:"name"`
	TypeID string          `yaml:"type_id,omitempty" json:"typeId,omitempty"`
	Phases []TemplatePhase `yaml:"phases" json:"phases"`
}

type TemplatePhase struct {
	PhaseID     string `yaml:"phase_id" json:"phaseId"`
	Name        string `yaml:"name" json:"name"`
	Duration    int    `yaml:"duration" json:"duration"` // minutes
	Predecessor string `yaml:"predecessor,omitempty" json:"predecessor,omitempty"`
	IsActive    bool   `yaml:"is_active" json:"isActive"`
}

// Phase is one timed stage of a challenge schedule. ScheduledStartDate and
// ScheduledEndDate are derived by the schedule resolver and never authored.
type Phase struct {
	PhaseID            string    `yaml:"phase_id" json:"phaseId"`
	Name               string    `yaml:"name" json:"name"`
	Duration           int       `yaml:"duration" json:"duration"` // minutes
	Predecessor        string    `yaml:"predecessor,omitempty" json:"predecessor,omitempty"`
	ScheduledStartDate time.Time `yaml:"scheduled_start_date" json:"scheduledStartDate"`
	ScheduledEndDate   time.Time `yaml:"scheduled_end_date" json:"scheduledEndDate"`
	Status             string    `yaml:"status,omitempty" json:"status,omitempty"`
	IsOpen             bool      `yaml:"is_open" json:"isOpen"`
}

// MilestoneConfig is the optional count × duration sub-schedule. Zero
// Count or DurationDays means the field is unset.
type MilestoneConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	Count        int  `yaml:"count,omitempty" json:"count,omitempty"`
	DurationDays int  `yaml:"duration_days,omitempty" json:"durationDays,omitempty"`
}

func ClonePhases(phases []Phase) []Phase {
	if phases == nil {
		return nil
	}
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

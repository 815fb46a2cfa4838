package model

import (
	"fmt"
	"time"
)

type SaveStatus string

const (
	SaveStatusIdle   SaveStatus = "idle"
	SaveStatusSaving SaveStatus = "saving"
	SaveStatusSaved  SaveStatus = "saved"
	SaveStatusError  SaveStatus = "error"
)

// AutosaveState is the save indicator shown next to the editor.
type AutosaveState struct {
	Status      SaveStatus `yaml:"status" json:"status"`
	LastSavedAt *time.Time `yaml:"last_saved_at,omitempty" json:"lastSavedAt,omitempty"`
	LastError   string     `yaml:"last_error,omitempty" json:"lastError,omitempty"`
}

// Teardown may reset any state back to idle; that edge is handled by
// ValidateSaveTransition rather than listed here.
var validSaveTransitions = map[SaveStatus]map[SaveStatus]bool{
	SaveStatusIdle: {
		SaveStatusSaving: true,
	},
	SaveStatusSaving: {
		SaveStatusSaved: true,
		SaveStatusError: true,
	},
	SaveStatusSaved: {
		SaveStatusSaving: true,
	},
	SaveStatusError: {
		SaveStatusSaving: true,
	},
}

func IsSaveSettled(s SaveStatus) bool {
	return s == SaveStatusSaved || s == SaveStatusError
}

func ValidateSaveTransition(from, to SaveStatus) error {
	if to == SaveStatusIdle {
		return nil
	}
	allowed, ok := validSaveTransitions[from]
	if !ok {
		return fmt.Errorf("unknown save status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid save transition: %q → %q", from, to)
	}
	return nil
}

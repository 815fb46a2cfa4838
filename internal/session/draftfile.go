package session

import (
	"fmt"

	"github.com/msageha/challenge_editor/internal/model"
	yamlutil "github.com/msageha/challenge_editor/internal/yaml"
)

// ReadDraftFile loads a hand-edited draft YAML file.
func ReadDraftFile(path string) (model.ChallengeDraft, error) {
	if err := yamlutil.ValidateSchemaHeader(path, model.DraftFileType); err != nil {
		return model.ChallengeDraft{}, fmt.Errorf("draft %s: %w", path, err)
	}
	var d model.ChallengeDraft
	if err := yamlutil.ReadFile(path, &d); err != nil {
		return model.ChallengeDraft{}, fmt.Errorf("draft %s: %w", path, err)
	}
	return d, nil
}

// WriteDraftFile writes a draft atomically, keeping the previous file as
// path.bak.
func WriteDraftFile(path string, d model.ChallengeDraft) error {
	if d.SchemaVersion == 0 {
		d.SchemaVersion = model.DraftSchemaVersion
	}
	if d.FileType == "" {
		d.FileType = model.DraftFileType
	}
	if err := yamlutil.AtomicWrite(path, d); err != nil {
		return fmt.Errorf("draft %s: %w", path, err)
	}
	return nil
}

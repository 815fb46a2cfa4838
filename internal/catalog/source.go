// Package catalog provides the phase catalog and timeline templates the
// editor schedules from.
package catalog

import (
	"context"
	"fmt"

	"github.com/msageha/challenge_editor/internal/model"
	yamlutil "github.com/msageha/challenge_editor/internal/yaml"
)

// Source is the read side of the catalog service.
type Source interface {
	FetchChallengePhases(ctx context.Context) ([]model.PhaseDefinition, error)
	FetchTimelineTemplates(ctx context.Context) ([]model.TimelineTemplate, error)
}

// FileSource reads the catalog from a YAML file on every fetch, so edits to
// the file are picked up once the client cache expires.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) FetchChallengePhases(ctx context.Context) ([]model.PhaseDefinition, error) {
	cat, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Phases, nil
}

func (s *FileSource) FetchTimelineTemplates(ctx context.Context) ([]model.TimelineTemplate, error) {
	cat, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Templates, nil
}

func (s *FileSource) read(ctx context.Context) (model.PhaseCatalog, error) {
	if err := ctx.Err(); err != nil {
		return model.PhaseCatalog{}, err
	}
	if err := yamlutil.ValidateSchemaHeader(s.path, model.CatalogFileType); err != nil {
		return model.PhaseCatalog{}, fmt.Errorf("catalog: %s: %w", s.path, err)
	}
	var cat model.PhaseCatalog
	if err := yamlutil.ReadFile(s.path, &cat); err != nil {
		return model.PhaseCatalog{}, fmt.Errorf("catalog: %s: %w", s.path, err)
	}
	if err := Validate(cat); err != nil {
		return model.PhaseCatalog{}, fmt.Errorf("catalog: %s: %w", s.path, err)
	}
	return cat, nil
}

// StaticSource serves fixed lists.
type StaticSource struct {
	Phases    []model.PhaseDefinition
	Templates []model.TimelineTemplate
}

func (s StaticSource) FetchChallengePhases(ctx context.Context) ([]model.PhaseDefinition, error) {
	return clonePhaseDefs(s.Phases), ctx.Err()
}

func (s StaticSource) FetchTimelineTemplates(ctx context.Context) ([]model.TimelineTemplate, error) {
	return cloneTemplates(s.Templates), ctx.Err()
}

// Validate rejects duplicate phase or template IDs and template phases that
// are missing from the phase list.
func Validate(cat model.PhaseCatalog) error {
	known := make(map[string]bool, len(cat.Phases))
	for i, p := range cat.Phases {
		if p.ID == "" {
			return fmt.Errorf("phases[%d]: id is required", i)
		}
		if known[p.ID] {
			return fmt.Errorf("phases[%d]: duplicate id %q", i, p.ID)
		}
		known[p.ID] = true
	}
	seen := make(map[string]bool, len(cat.Templates))
	for i, tpl := range cat.Templates {
		if tpl.ID == "" {
			return fmt.Errorf("templates[%d]: id is required", i)
		}
		if seen[tpl.ID] {
			return fmt.Errorf("templates[%d]: duplicate id %q", i, tpl.ID)
		}
		seen[tpl.ID] = true
		for j, tp := range tpl.Phases {
			if !known[tp.PhaseID] {
				return fmt.Errorf("templates[%d].phases[%d]: unknown phase %q", i, j, tp.PhaseID)
			}
		}
	}
	return nil
}

func clonePhaseDefs(in []model.PhaseDefinition) []model.PhaseDefinition {
	if in == nil {
		return nil
	}
	return append([]model.PhaseDefinition(nil), in...)
}

func cloneTemplates(in []model.TimelineTemplate) []model.TimelineTemplate {
	if in == nil {
		return nil
	}
	out := make([]model.TimelineTemplate, len(in))
	for i, tpl := range in {
		out[i] = tpl
		out[i].Phases = append([]model.TemplatePhase(nil), tpl.Phases...)
	}
	return out
}

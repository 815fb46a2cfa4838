// Package setup handles chedit workspace initialization.
package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/challenge_editor/internal/model"
	"github.com/msageha/challenge_editor/internal/schedule"
	atomicyaml "github.com/msageha/challenge_editor/internal/yaml"
	"github.com/msageha/challenge_editor/templates"
)

// DirName is the workspace directory created inside a project.
const DirName = ".chedit"

// ErrNotFound is returned by FindBaseDir when no workspace exists in the
// directory or any of its ancestors.
var ErrNotFound = errors.New("setup: .chedit/ directory not found")

// Result describes what Run created.
type Result struct {
	BaseDir   string
	DraftPath string
	DraftID   string
}

// Run initializes the .chedit/ directory structure in the given project directory.
// projectName overrides the auto-detected name (defaults to directory basename if empty).
func Run(projectDir, projectName string) (Result, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, DirName)

	if _, err := os.Stat(base); err == nil {
		return Result{}, fmt.Errorf("%s already exists", base)
	}

	dirs := []string{
		"drafts",
		"locks",
		"logs",
		"quarantine",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return Result{}, fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg, err := generateConfig(absDir, projectName)
	if err != nil {
		return Result{}, fmt.Errorf("generate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := atomicyaml.AtomicWrite(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return Result{}, fmt.Errorf("write config.yaml: %w", err)
	}

	if err := copyTemplateFile("catalog.yaml", filepath.Join(base, cfg.Catalog.Path)); err != nil {
		return Result{}, err
	}

	draft, err := generateDraft(cfg, time.Now())
	if err != nil {
		return Result{}, fmt.Errorf("generate draft: %w", err)
	}
	draftPath := filepath.Join(absDir, draft.ID+".yaml")
	if err := atomicyaml.AtomicWrite(draftPath, draft); err != nil {
		return Result{}, fmt.Errorf("write draft: %w", err)
	}

	return Result{BaseDir: base, DraftPath: draftPath, DraftID: draft.ID}, nil
}

// FindBaseDir searches for .chedit/ in dir and its ancestors.
func FindBaseDir(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve dir: %w", err)
	}
	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// LoadConfig reads config.yaml from a workspace directory.
func LoadConfig(baseDir string) (model.Config, error) {
	return model.LoadConfig(filepath.Join(baseDir, "config.yaml"))
}

func copyTemplateFile(name, dst string) error {
	data, err := fs.ReadFile(templates.FS, name)
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}
	if err := atomicyaml.AtomicWriteRaw(dst, data); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func generateConfig(projectDir, projectName string) (model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "config.yaml")
	if err != nil {
		return model.Config{}, fmt.Errorf("read config template: %w", err)
	}

	cfg := model.Config{Autosave: model.AutosaveConfig{Enabled: true}}
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config template: %w", err)
	}
	cfg.ApplyDefaults()

	if projectName != "" {
		cfg.Project.Name = projectName
	} else {
		cfg.Project.Name = filepath.Base(projectDir)
	}
	return cfg, nil
}

// generateDraft builds the starter draft from the embedded template under a
// fresh challenge ID, starting at the next UTC midnight after now.
func generateDraft(cfg model.Config, now time.Time) (model.ChallengeDraft, error) {
	data, err := fs.ReadFile(templates.FS, "draft.yaml")
	if err != nil {
		return model.ChallengeDraft{}, fmt.Errorf("read draft template: %w", err)
	}
	var d model.ChallengeDraft
	if err := atomicyaml.Decode(data, &d); err != nil {
		return model.ChallengeDraft{}, fmt.Errorf("parse draft template: %w", err)
	}
	id, err := model.NewChallengeID(now)
	if err != nil {
		return model.ChallengeDraft{}, err
	}
	d.ID = id
	if d.Name == "" {
		d.Name = cfg.Project.Name
	}

	r, err := schedule.NewResolverFromConfig(cfg.Schedule)
	if err != nil {
		return model.ChallengeDraft{}, err
	}
	if d.StartDate.IsZero() {
		d.StartDate = now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
	sched := r.Resolve(d.Phases, d.StartDate)
	d.Phases = sched.Phases
	d.UpdatedAt = now.UTC().Truncate(time.Second)
	return d, nil
}

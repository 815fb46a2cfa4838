package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msageha/challenge_editor/internal/lock"
	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
	yamlutil "github.com/msageha/challenge_editor/internal/yaml"
)

const (
	recordSchemaVersion = 1
	recordFileType      = "saved_challenge"
)

// record is the on-disk form of a saved challenge.
type record struct {
	SchemaVersion int       `yaml:"schema_version"`
	FileType      string    `yaml:"file_type"`
	Revision      string    `yaml:"revision"`
	SavedAt       time.Time `yaml:"saved_at"`
	Payload       Payload   `yaml:"payload"`
}

func init() {
	yamlutil.RegisterFileType(recordFileType, func(path string) any {
		return record{
			SchemaVersion: recordSchemaVersion,
			FileType:      recordFileType,
			Payload:       Payload{ID: yamlutil.IDFromPath(path), Phases: []PhasePayload{}},
		}
	})
}

// YAMLStore keeps one <id>.yaml file per challenge. Writes are atomic and
// keep the previous revision as <id>.yaml.bak; an unreadable file is
// quarantined under baseDir and replaced from that backup.
type YAMLStore struct {
	dir     string
	baseDir string
	locks   *lock.MutexMap
	log     *logging.Logger
	now     func() time.Time
}

func NewYAMLStore(dir, baseDir string, log *logging.Logger) *YAMLStore {
	return &YAMLStore{
		dir:     dir,
		baseDir: baseDir,
		locks:   lock.NewMutexMap(),
		log:     log.With("store"),
		now:     time.Now,
	}
}

func (s *YAMLStore) Dir() string { return s.dir }

func (s *YAMLStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *YAMLStore) Save(ctx context.Context, draft model.ChallengeDraft) (model.SavedChallenge, error) {
	if err := checkID(draft.ID); err != nil {
		return model.SavedChallenge{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.SavedChallenge{}, err
	}

	savedAt := s.now().UTC().Truncate(time.Second)
	out, payload, err := canonical(draft, savedAt)
	if err != nil {
		return model.SavedChallenge{}, err
	}
	rec := record{
		SchemaVersion: recordSchemaVersion,
		FileType:      recordFileType,
		Revision:      uuid.NewString(),
		SavedAt:       savedAt,
		Payload:       payload,
	}

	err = s.locks.Do(draft.ID, func() error {
		return yamlutil.AtomicWrite(s.path(draft.ID), rec)
	})
	if err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: save %s: %w", draft.ID, err)
	}
	s.log.Debugf("challenge_saved id=%s revision=%s", draft.ID, rec.Revision)
	return model.SavedChallenge{Draft: out, Revision: rec.Revision, SavedAt: savedAt}, nil
}

func (s *YAMLStore) Load(ctx context.Context, id string) (model.ChallengeDraft, error) {
	saved, err := s.Get(ctx, id)
	if err != nil {
		return model.ChallengeDraft{}, err
	}
	return saved.Draft, nil
}

// Get is Load with the revision metadata.
func (s *YAMLStore) Get(ctx context.Context, id string) (model.SavedChallenge, error) {
	if err := checkID(id); err != nil {
		return model.SavedChallenge{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.SavedChallenge{}, err
	}

	var rec record
	err := s.locks.Do(id, func() error {
		var err error
		rec, err = s.readRecord(id)
		return err
	})
	if err != nil {
		return model.SavedChallenge{}, err
	}
	d, err := FromPayload(rec.Payload)
	if err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	return model.SavedChallenge{Draft: d, Revision: rec.Revision, SavedAt: rec.SavedAt}, nil
}

// readRecord reads and validates the record file, recovering it once if
// it is corrupt. Caller holds the per-ID lock.
func (s *YAMLStore) readRecord(id string) (record, error) {
	path := s.path(id)
	rec, err := decodeRecord(path)
	if os.IsNotExist(err) {
		return record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err == nil {
		return rec, nil
	}

	s.log.Warnf("challenge_file_corrupt id=%s error=%v", id, err)
	outcome, rerr := yamlutil.RecoverCorruptedFile(s.baseDir, path, recordFileType, s.log)
	if rerr != nil {
		return record{}, fmt.Errorf("store: recover %s: %w", id, rerr)
	}
	s.log.Warnf("challenge_file_recovered id=%s source=%s", id, outcome)
	rec, err = decodeRecord(path)
	if err != nil {
		return record{}, fmt.Errorf("store: load %s after recovery: %w", id, err)
	}
	return rec, nil
}

func decodeRecord(path string) (record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return record{}, err
	}
	if err := yamlutil.ValidateSchemaHeaderFromBytes(content, recordFileType); err != nil {
		return record{}, err
	}
	var rec record
	if err := yamlutil.Decode(content, &rec); err != nil {
		return record{}, err
	}
	return rec, nil
}

// List reads every record in the store directory, newest first. Files that
// cannot be read are skipped and logged.
func (s *YAMLStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", s.dir, err)
	}
	var out []Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".yaml" || strings.HasPrefix(name, ".") {
			continue
		}
		rec, err := decodeRecord(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Warnf("challenge_list_skip file=%s error=%v", name, err)
			continue
		}
		out = append(out, Summary{ID: rec.Payload.ID, Name: rec.Payload.Name, Revision: rec.Revision, SavedAt: rec.SavedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out, nil
}

func (s *YAMLStore) Close() error { return nil }

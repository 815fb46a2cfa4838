// Package store persists challenge drafts behind the Adapter interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
)

var (
	// ErrNotFound is returned by Load for unknown IDs.
	ErrNotFound = errors.New("store: challenge not found")
	// ErrInvalidID is returned for IDs that cannot be used as storage keys.
	ErrInvalidID = errors.New("store: invalid challenge id")
)

// Adapter is the persistence boundary the editor saves through.
type Adapter interface {
	// Save persists draft and returns the store's canonical copy.
	Save(ctx context.Context, draft model.ChallengeDraft) (model.SavedChallenge, error)
	// Load returns the stored draft or ErrNotFound.
	Load(ctx context.Context, id string) (model.ChallengeDraft, error)
}

// Summary is one line of a store listing.
type Summary struct {
	ID       string
	Name     string
	Revision string
	SavedAt  time.Time
}

// Store is an Adapter that can also enumerate and release its resources.
type Store interface {
	Adapter
	// Get returns the stored copy with its revision, or ErrNotFound.
	Get(ctx context.Context, id string) (model.SavedChallenge, error)
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

var storageKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

func checkID(id string) error {
	if !storageKey.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// canonical stamps a draft the way the store sees it after a save.
func canonical(draft model.ChallengeDraft, savedAt time.Time) (model.ChallengeDraft, Payload, error) {
	draft.UpdatedAt = savedAt
	p := ToPayload(draft)
	out, err := FromPayload(p)
	if err != nil {
		return model.ChallengeDraft{}, Payload{}, err
	}
	return out, p, nil
}

// New opens the backend selected by cfg. Relative paths resolve against
// baseDir.
func New(cfg model.StoreConfig, baseDir string, log *logging.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendYAML:
		return NewYAMLStore(resolve(baseDir, cfg.Dir), baseDir, log), nil
	case BackendSQLite:
		return OpenSQLStore(resolve(baseDir, cfg.DSN), log)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(baseDir, p)
}

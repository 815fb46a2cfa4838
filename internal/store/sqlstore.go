package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
)

// challengeRow is one saved challenge. The draft itself is stored as its
// JSON wire payload.
type challengeRow struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Name      string    `gorm:"size:255"`
	Revision  string    `gorm:"size:36;not null"`
	Payload   string    `gorm:"type:text;not null"`
	SavedAt   time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (challengeRow) TableName() string { return "challenges" }

// SQLStore keeps challenges in a SQL database through GORM.
type SQLStore struct {
	db  *gorm.DB
	log *logging.Logger
	now func() time.Time
}

// OpenSQLStore opens (creating if needed) a SQLite database at dsn and
// migrates the schema.
func OpenSQLStore(dsn string, log *logging.Logger) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	if dsn == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return NewSQLStore(db, log)
}

// NewSQLStore wraps an existing connection and migrates the schema.
func NewSQLStore(db *gorm.DB, log *logging.Logger) (*SQLStore, error) {
	if err := db.AutoMigrate(&challengeRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &SQLStore{db: db, log: log.With("store"), now: time.Now}, nil
}

func (s *SQLStore) Save(ctx context.Context, draft model.ChallengeDraft) (model.SavedChallenge, error) {
	if err := checkID(draft.ID); err != nil {
		return model.SavedChallenge{}, err
	}

	savedAt := s.now().UTC().Truncate(time.Second)
	out, payload, err := canonical(draft, savedAt)
	if err != nil {
		return model.SavedChallenge{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: encode %s: %w", draft.ID, err)
	}

	row := challengeRow{
		ID:       draft.ID,
		Name:     draft.Name,
		Revision: uuid.NewString(),
		Payload:  string(body),
		SavedAt:  savedAt,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "revision", "payload", "saved_at", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: save %s: %w", draft.ID, err)
	}
	s.log.Debugf("challenge_saved id=%s revision=%s backend=sqlite", draft.ID, row.Revision)
	return model.SavedChallenge{Draft: out, Revision: row.Revision, SavedAt: savedAt}, nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (model.ChallengeDraft, error) {
	saved, err := s.Get(ctx, id)
	if err != nil {
		return model.ChallengeDraft{}, err
	}
	return saved.Draft, nil
}

// Get is Load with the revision metadata.
func (s *SQLStore) Get(ctx context.Context, id string) (model.SavedChallenge, error) {
	if err := checkID(id); err != nil {
		return model.SavedChallenge{}, err
	}
	var row challengeRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SavedChallenge{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: load %s: %w", id, err)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: decode %s: %w", id, err)
	}
	d, err := FromPayload(payload)
	if err != nil {
		return model.SavedChallenge{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	return model.SavedChallenge{Draft: d, Revision: row.Revision, SavedAt: row.SavedAt.UTC()}, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Summary, error) {
	var rows []challengeRow
	err := s.db.WithContext(ctx).
		Select("id", "name", "revision", "saved_at").
		Order("saved_at DESC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, Summary{ID: r.ID, Name: r.Name, Revision: r.Revision, SavedAt: r.SavedAt.UTC()})
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

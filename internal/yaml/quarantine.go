package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
)

// RecoveryOutcome says how a corrupt file was replaced.
type RecoveryOutcome string

const (
	RecoveredFromBackup RecoveryOutcome = "backup"
	RecoveredSkeleton   RecoveryOutcome = "skeleton"
)

// Quarantine moves filePath into <baseDir>/quarantine under a timestamped
// name and returns the new location.
func Quarantine(baseDir, filePath string, now time.Time) (string, error) {
	quarantineDir := filepath.Join(baseDir, "quarantine")
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(filePath), now.UTC().Format("20060102T150405"))
	dest := filepath.Join(quarantineDir, name)
	if err := os.Rename(filePath, dest); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return dest, nil
}

// RestoreFromBackup copies filePath.bak over filePath after checking that
// the backup itself parses and carries the expected header.
func RestoreFromBackup(filePath, fileType string) error {
	bakPath := filePath + ".bak"
	content, err := os.ReadFile(bakPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("no backup file: %s", bakPath)
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := validateYAML(content); err != nil {
		return fmt.Errorf("backup YAML is also corrupted: %w", err)
	}
	if err := ValidateSchemaHeaderFromBytes(content, fileType); err != nil {
		return fmt.Errorf("backup header: %w", err)
	}
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	return nil
}

// Skeleton returns the minimal valid document for a file type.
func Skeleton(fileType, filePath string) any {
	fileTypesMu.RLock()
	fn, ok := skeletons[fileType]
	fileTypesMu.RUnlock()
	if !ok {
		return SchemaHeader{SchemaVersion: CurrentSchemaVersion, FileType: fileType}
	}
	return fn(filePath)
}

// IDFromPath is the base name of path without its extension.
func IDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func draftSkeleton(path string) any {
	return model.NewDraft(IDFromPath(path), "")
}

func catalogSkeleton(string) any {
	return model.PhaseCatalog{
		SchemaVersion: model.CatalogSchemaVersion,
		FileType:      model.CatalogFileType,
		Phases:        []model.PhaseDefinition{},
		Templates:     []model.TimelineTemplate{},
	}
}

// RecoverCorruptedFile quarantines filePath, then restores it from its
// backup or, failing that, writes a skeleton in its place.
func RecoverCorruptedFile(baseDir, filePath, fileType string, log *logging.Logger) (RecoveryOutcome, error) {
	log = log.With("yaml")
	dest, err := Quarantine(baseDir, filePath, time.Now())
	if err != nil {
		return "", fmt.Errorf("quarantine failed: %w", err)
	}
	log.Warnf("file_quarantined path=%s dest=%s", filePath, dest)

	restoreErr := RestoreFromBackup(filePath, fileType)
	if restoreErr == nil {
		log.Infof("file_restored path=%s source=backup", filePath)
		return RecoveredFromBackup, nil
	}
	log.Warnf("backup_restore_failed path=%s error=%v", filePath, restoreErr)

	if err := AtomicWrite(filePath, Skeleton(fileType, filePath)); err != nil {
		return "", fmt.Errorf("skeleton generation failed: %w", err)
	}
	log.Infof("file_restored path=%s source=skeleton type=%s", filePath, fileType)
	return RecoveredSkeleton, nil
}

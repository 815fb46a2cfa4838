package yaml

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
)

func TestQuarantine(t *testing.T) {
	baseDir := t.TempDir()
	filePath := filepath.Join(baseDir, "chl.yaml")
	if err := os.WriteFile(filePath, []byte("corrupted: [\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dest, err := Quarantine(baseDir, filePath, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("original file should be removed after quarantine")
	}
	want := filepath.Join(baseDir, "quarantine", "chl.yaml.20260301T093000.corrupt")
	if dest != want {
		t.Errorf("dest = %s, want %s", dest, want)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
}

func TestRestoreFromBackup(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "chl.yaml")

	if err := RestoreFromBackup(filePath, model.DraftFileType); err == nil {
		t.Error("expected error when no backup exists")
	}

	if err := os.WriteFile(filePath+".bak", []byte(":\n  broken: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RestoreFromBackup(filePath, model.DraftFileType); err == nil {
		t.Error("expected error when backup is also corrupted")
	}

	if err := os.WriteFile(filePath+".bak", []byte("schema_version: 1\nfile_type: phase_catalog\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RestoreFromBackup(filePath, model.DraftFileType); err == nil {
		t.Error("expected error when backup has the wrong file type")
	}

	valid := "schema_version: 1\nfile_type: challenge_draft\nid: chl\n"
	if err := os.WriteFile(filePath+".bak", []byte(valid), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RestoreFromBackup(filePath, model.DraftFileType); err != nil {
		t.Fatalf("RestoreFromBackup failed: %v", err)
	}
	content, _ := os.ReadFile(filePath)
	if string(content) != valid {
		t.Errorf("restored content = %q", content)
	}
}

func TestSkeleton_Draft(t *testing.T) {
	v := Skeleton(model.DraftFileType, "/x/drafts/chl_1_abcd.yaml")
	got, ok := v.(model.ChallengeDraft)
	if !ok {
		t.Fatalf("draft skeleton has type %T", v)
	}
	if got.ID != "chl_1_abcd" || got.FileType != model.DraftFileType || got.SchemaVersion != model.DraftSchemaVersion {
		t.Errorf("unexpected skeleton %+v", got)
	}
}

func TestRecoverCorruptedFile_WithBackup(t *testing.T) {
	baseDir := t.TempDir()
	filePath := filepath.Join(baseDir, "catalog.yaml")
	os.WriteFile(filePath, []byte("corrupted: [\n"), 0644)
	os.WriteFile(filePath+".bak", []byte("schema_version: 1\nfile_type: phase_catalog\nphases: []\n"), 0644)

	outcome, err := RecoverCorruptedFile(baseDir, filePath, model.CatalogFileType, logging.Discard())
	if err != nil {
		t.Fatalf("RecoverCorruptedFile failed: %v", err)
	}
	if outcome != RecoveredFromBackup {
		t.Errorf("outcome = %s, want backup", outcome)
	}
	if err := ValidateSchemaHeader(filePath, model.CatalogFileType); err != nil {
		t.Errorf("restored file invalid: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(baseDir, "quarantine"))
	if len(entries) != 1 {
		t.Errorf("expected 1 quarantined file, got %d", len(entries))
	}
}

func TestRecoverCorruptedFile_WithoutBackup(t *testing.T) {
	baseDir := t.TempDir()
	filePath := filepath.Join(baseDir, "chl_9.yaml")
	os.WriteFile(filePath, []byte("corrupted: [\n"), 0644)

	outcome, err := RecoverCorruptedFile(baseDir, filePath, model.DraftFileType, nil)
	if err != nil {
		t.Fatalf("RecoverCorruptedFile failed: %v", err)
	}
	if outcome != RecoveredSkeleton {
		t.Errorf("outcome = %s, want skeleton", outcome)
	}

	var d model.ChallengeDraft
	if err := ReadFile(filePath, &d); err != nil {
		t.Fatalf("skeleton unreadable: %v", err)
	}
	if d.ID != "chl_9" || !d.SchedulingEnabled {
		t.Errorf("unexpected skeleton %+v", d)
	}
}

func TestRegisterFileType(t *testing.T) {
	RegisterFileType("test_record", func(path string) any {
		return map[string]any{"schema_version": 1, "file_type": "test_record", "id": IDFromPath(path)}
	})
	if err := ValidateSchemaHeaderFromBytes([]byte("schema_version: 1\nfile_type: test_record\n"), "test_record"); err != nil {
		t.Fatalf("registered type rejected: %v", err)
	}
	got := Skeleton("test_record", "/tmp/abc.yaml").(map[string]any)
	if got["id"] != "abc" {
		t.Errorf("skeleton id = %v", got["id"])
	}
}

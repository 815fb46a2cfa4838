package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

func TestAtomicWrite_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts", "nested", "chl.yaml")

	if err := AtomicWrite(path, map[string]any{"name": "Launch", "phases": 3}); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	var got map[string]any
	if err := ReadFile(path, &got); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got["name"] != "Launch" || got["phases"] != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestAtomicWrite_KeepsPreviousVersionAsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")

	if err := AtomicWrite(path, map[string]string{"revision": "a"}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Error("first write must not create a backup")
	}
	if err := AtomicWrite(path, map[string]string{"revision": "b"}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	var bak, cur map[string]string
	if err := ReadFile(path+".bak", &bak); err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if err := ReadFile(path, &cur); err != nil {
		t.Fatalf("read current: %v", err)
	}
	if bak["revision"] != "a" {
		t.Errorf("backup revision: got %q, want %q", bak["revision"], "a")
	}
	if cur["revision"] != "b" {
		t.Errorf("current revision: got %q, want %q", cur["revision"], "b")
	}
}

func TestAtomicWriteRaw_RejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.yaml")

	if err := AtomicWriteRaw(path, []byte(":\n  invalid: [\n    broken")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not exist after failed write")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".chedit-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAtomicWriteRaw_FailedWriteLeavesOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	if err := AtomicWriteRaw(path, []byte("name: kept\n")); err != nil {
		t.Fatalf("initial write failed: %v", err)
	}

	_ = AtomicWriteRaw(path, []byte("name: [\n"))

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "name: kept\n" {
		t.Errorf("original overwritten: %q", content)
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	type doc struct {
		Name string `yaml:"name"`
	}
	var d doc
	if err := Decode([]byte("name: a\nnmae: b\n"), &d); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if err := Decode([]byte(""), &d); err == nil || !strings.Contains(err.Error(), "empty document") {
		t.Fatalf("expected empty document error, got %v", err)
	}
	if err := Decode([]byte("name: ok\n"), &d); err != nil || d.Name != "ok" {
		t.Fatalf("Decode: %+v, %v", d, err)
	}
}

func TestAtomicWrite_StructRoundTrip(t *testing.T) {
	type header struct {
		SchemaVersion int    `yaml:"schema_version"`
		FileType      string `yaml:"file_type"`
	}
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	if err := AtomicWrite(path, &header{SchemaVersion: 1, FileType: "phase_catalog"}); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var got header
	if err := yamlv3.Unmarshal(content, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.SchemaVersion != 1 || got.FileType != "phase_catalog" {
		t.Errorf("got %+v", got)
	}
}

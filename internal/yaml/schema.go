package yaml

import (
	"fmt"
	"os"
	"sync"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/challenge_editor/internal/model"
)

const CurrentSchemaVersion = 1

var (
	fileTypesMu    sync.RWMutex
	validFileTypes = map[string]bool{
		model.DraftFileType:   true,
		model.CatalogFileType: true,
	}
	skeletons = map[string]func(path string) any{
		model.DraftFileType:   draftSkeleton,
		model.CatalogFileType: catalogSkeleton,
	}
)

// RegisterFileType adds a file type owned by another package together with
// the skeleton written when a corrupt file of that type has no backup.
func RegisterFileType(fileType string, skeleton func(path string) any) {
	fileTypesMu.Lock()
	defer fileTypesMu.Unlock()
	validFileTypes[fileType] = true
	if skeleton != nil {
		skeletons[fileType] = skeleton
	}
}

func knownFileType(fileType string) bool {
	fileTypesMu.RLock()
	defer fileTypesMu.RUnlock()
	return validFileTypes[fileType]
}

// SchemaHeader is the leading pair of keys every managed file carries.
type SchemaHeader struct {
	SchemaVersion int    `yaml:"schema_version"`
	FileType      string `yaml:"file_type"`
}

func ValidateSchemaHeader(path string, expectedFileType string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return ValidateSchemaHeaderFromBytes(content, expectedFileType)
}

func ValidateSchemaHeaderFromBytes(content []byte, expectedFileType string) error {
	header, err := ReadHeader(content)
	if err != nil {
		return err
	}

	if header.SchemaVersion < 1 {
		return fmt.Errorf("invalid schema_version %d (must be >= 1)", header.SchemaVersion)
	}
	if header.SchemaVersion > CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema_version %d (max supported: %d)", header.SchemaVersion, CurrentSchemaVersion)
	}
	if header.FileType == "" {
		return fmt.Errorf("missing file_type")
	}
	if !knownFileType(header.FileType) {
		return fmt.Errorf("unknown file_type: %q", header.FileType)
	}
	if expectedFileType != "" && header.FileType != expectedFileType {
		return fmt.Errorf("file_type mismatch: got %q, expected %q", header.FileType, expectedFileType)
	}
	return nil
}

// ReadHeader decodes only the schema header and ignores the rest.
func ReadHeader(content []byte) (SchemaHeader, error) {
	var header SchemaHeader
	if err := yamlv3.Unmarshal(content, &header); err != nil {
		return SchemaHeader{}, fmt.Errorf("parse yaml: %w", err)
	}
	return header, nil
}

func NeedsMigration(schemaVersion int) bool {
	return schemaVersion < CurrentSchemaVersion
}

package identity

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// directoryYAML is the on-disk roster format: display name to subject id.
type directoryYAML struct {
	Subjects map[string]string `yaml:"subjects"`
}

// FileDirectory is a Directory backed by a YAML roster file, for hosts that
// keep a record of historical identities outside the sanction store.
type FileDirectory struct {
	subjects map[string]uuid.UUID
}

// LoadDirectory reads a YAML roster file. Entries with malformed ids are
// rejected so a typo cannot silently alias two identities.
func LoadDirectory(path string) (*FileDirectory, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from server config
	if err != nil {
		return nil, fmt.Errorf("identity: read directory: %w", err)
	}
	return ParseDirectory(data)
}

// ParseDirectory parses YAML roster data.
func ParseDirectory(data []byte) (*FileDirectory, error) {
	var raw directoryYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("identity: parse directory: %w", err)
	}

	subjects := make(map[string]uuid.UUID, len(raw.Subjects))
	for name, idStr := range raw.Subjects {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("identity: parse directory: subject %q: %w", name, err)
		}
		subjects[name] = id
	}
	return &FileDirectory{subjects: subjects}, nil
}

// Lookup returns the roster id for a display name.
func (d *FileDirectory) Lookup(name string) (uuid.UUID, bool) {
	id, ok := d.subjects[name]
	return id, ok
}

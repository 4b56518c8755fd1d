package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Artifact is the on-disk form of a KnownFaceSet written by enrollment:
// two positionally aligned lists.
type Artifact struct {
	Encodings [][]float32 `json:"encodings" yaml:"encodings"`
	IDs       []string    `json:"ids" yaml:"ids"`
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads an encodings artifact. JSON is the default; .yaml/.yml files are parsed as YAML.
func Load(path string) (*KnownFaceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read encodings artifact: %w", err)
	}

	var a Artifact
	if isYAML(path) {
		err = yaml.Unmarshal(data, &a)
	} else {
		err = json.Unmarshal(data, &a)
	}
	if err != nil {
		return nil, fmt.Errorf("parse encodings artifact %s: %w", path, err)
	}

	if len(a.Encodings) == 0 {
		return nil, ErrEmptyRoster
	}

	set, err := New(a.IDs, a.Encodings)
	if err != nil {
		return nil, fmt.Errorf("malformed encodings artifact %s: %w", path, err)
	}
	return set, nil
}

// Save writes the set as an artifact that Load can read back.
func Save(path string, s *KnownFaceSet) error {
	a := Artifact{
		Encodings: make([][]float32, s.Len()),
		IDs:       s.IDs(),
	}
	for i := range a.Encodings {
		a.Encodings[i] = s.Encoding(i)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(&a)
	} else {
		data, err = json.Marshal(&a)
	}
	if err != nil {
		return fmt.Errorf("encode encodings artifact: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // artifact is not secret
		return fmt.Errorf("write encodings artifact: %w", err)
	}
	return nil
}

package corpus

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape of the bundled starter corpus
type seedFile struct {
	Examples []seedEntry `yaml:"examples"`
}

type seedEntry struct {
	Type     string `yaml:"type"`
	Question string `yaml:"question"`
	Content  string `yaml:"content"`
}

// SeedFromFile loads starter examples from a YAML file into an empty
// corpus. A non-empty corpus is left untouched, and a missing seed
// file is not an error.
func (s *Store) SeedFromFile(ctx context.Context, path string) (int, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	added := 0
	for _, entry := range parsed.Examples {
		if _, err := s.Add(ctx, entry.Type, entry.Question, entry.Content); err != nil {
			return added, fmt.Errorf("seed entry %d: %w", added, err)
		}
		added++
	}
	return added, nil
}

package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type seedRule struct {
	Keyword  string `yaml:"keyword"`
	Response string `yaml:"response"`
}

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

// SeedDefaults loads the built-in starter rules into an empty store. A store
// that already has rules is left alone.
func (s *Store) SeedDefaults() error {
	n, err := s.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.importYAML(defaultsYAML)
}

// ImportFile adds every rule from a YAML file, upserting by keyword.
func (s *Store) ImportFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	return s.importYAML(data)
}

func (s *Store) importYAML(data []byte) error {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	for _, r := range seed.Rules {
		if _, err := s.Add(r.Keyword, r.Response); err != nil {
			return fmt.Errorf("failed to import rule %q: %w", r.Keyword, err)
		}
	}
	return nil
}

// ExportFile writes the active rules to a YAML file in import format.
func (s *Store) ExportFile(path string) error {
	snapshot, err := s.Snapshot()
	if err != nil {
		return err
	}

	var seed seedFile
	for _, r := range snapshot {
		seed.Rules = append(seed.Rules, seedRule{Keyword: r.Keyword, Response: r.Response})
	}

	data, err := yaml.Marshal(&seed)
	if err != nil {
		return fmt.Errorf("failed to serialize rules: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

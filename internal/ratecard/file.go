package ratecard

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk rate card layout.
type File struct {
	Programs []Program `yaml:"programs"`
}

// LoadFile reads a YAML rate card into a MemoryStore.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate card: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode reads a YAML rate card from r.
func Decode(r io.Reader) (*MemoryStore, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse rate card: %w", err)
	}
	seen := make(map[int64]bool, len(file.Programs))
	for _, p := range file.Programs {
		if seen[p.ID] {
			return nil, fmt.Errorf("failed to parse rate card: duplicate program id %d", p.ID)
		}
		seen[p.ID] = true
	}
	return NewMemoryStore(file.Programs), nil
}

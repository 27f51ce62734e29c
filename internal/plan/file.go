package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Save writes the plan as indented JSON.
func Save(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return nil
}

// Load reads a plan previously written by Save.
func Load(rd io.Reader) (*Result, error) {
	var r Result
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &r, nil
}

// SaveFile writes the plan to path, replacing any existing file.
func SaveFile(path string, r *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plan file: %w", err)
	}
	if err := Save(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a plan from path.
func LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

package plugins

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// stateFile is the on-disk activation record. Slugs absent from the map are
// treated as deactivated.
type stateFile struct {
	Active map[string]bool `toml:"active"`
}

func loadState(path string) (*stateFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &stateFile{Active: make(map[string]bool)}, nil
	}
	if err != nil {
		return nil, err
	}

	var st stateFile
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Active == nil {
		st.Active = make(map[string]bool)
	}
	return &st, nil
}

func saveState(path string, st *stateFile) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFile is the descriptor every plugin directory must carry.
const ManifestFile = "plugin.json"

// Manifest describes one installed plugin. Fields beyond the core set are
// preserved in Extra so third-party plugins can ship their own metadata
// without a schema change here.
type Manifest struct {
	Name        string
	Slug        string
	Version     string
	Description string
	UpdateURL   string
	Requires    string // minimum application version, empty means any
	Extra       map[string]any
}

var coreManifestFields = map[string]bool{
	"name":        true,
	"slug":        true,
	"version":     true,
	"description": true,
	"update_url":  true,
	"requires":    true,
}

// UnmarshalJSON splits the document into core fields and the Extra bag.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	str := func(key string) (string, error) {
		v, ok := raw[key]
		if !ok {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		return s, nil
	}

	var err error
	if m.Name, err = str("name"); err != nil {
		return err
	}
	if m.Slug, err = str("slug"); err != nil {
		return err
	}
	if m.Version, err = str("version"); err != nil {
		return err
	}
	if m.Description, err = str("description"); err != nil {
		return err
	}
	if m.UpdateURL, err = str("update_url"); err != nil {
		return err
	}
	if m.Requires, err = str("requires"); err != nil {
		return err
	}

	for key, v := range raw {
		if coreManifestFields[key] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		m.Extra[key] = val
	}
	return nil
}

// MarshalJSON writes the core fields alongside the Extra bag. Extra keys
// shadowed by core field names are dropped.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+6)
	for key, v := range m.Extra {
		if !coreManifestFields[key] {
			out[key] = v
		}
	}
	out["name"] = m.Name
	out["slug"] = m.Slug
	out["version"] = m.Version
	if m.Description != "" {
		out["description"] = m.Description
	}
	if m.UpdateURL != "" {
		out["update_url"] = m.UpdateURL
	}
	if m.Requires != "" {
		out["requires"] = m.Requires
	}
	return json.Marshal(out)
}

// ExtraString returns a string-valued extra field.
func (m *Manifest) ExtraString(key string) (string, bool) {
	s, ok := m.Extra[key].(string)
	return s, ok
}

// ExtraBool returns a bool-valued extra field.
func (m *Manifest) ExtraBool(key string) (bool, bool) {
	b, ok := m.Extra[key].(bool)
	return b, ok
}

// ExtraNumber returns a numeric extra field. JSON numbers decode as float64.
func (m *Manifest) ExtraNumber(key string) (float64, bool) {
	f, ok := m.Extra[key].(float64)
	return f, ok
}

// ManifestError reports an unreadable or invalid plugin descriptor.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid plugin manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// LoadManifest reads and validates the descriptor inside a plugin directory.
// A missing slug falls back to the directory name.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	if m.Slug == "" {
		m.Slug = filepath.Base(dir)
	}
	if err := m.validate(); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("version is required")
	}
	if strings.ContainsAny(m.Slug, "/\\") || m.Slug == "." || m.Slug == ".." {
		return fmt.Errorf("slug %q is not a valid directory name", m.Slug)
	}
	return nil
}

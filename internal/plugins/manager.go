package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/lapis-cms/lapisup/internal/archive"
	"github.com/lapis-cms/lapisup/internal/backup"
	"github.com/lapis-cms/lapisup/internal/engine"
	"github.com/lapis-cms/lapisup/internal/hooks"
	"github.com/lapis-cms/lapisup/internal/installer"
	"github.com/lapis-cms/lapisup/internal/rollback"
	"github.com/lapis-cms/lapisup/internal/source"
)

var (
	// ErrNotFound means no installed plugin has the given slug.
	ErrNotFound = errors.New("plugin not found")
	// ErrAlreadyInstalled means the slug's directory already exists.
	ErrAlreadyInstalled = errors.New("plugin already installed")
	// ErrNotUpdatable means the plugin's manifest has no update_url.
	ErrNotUpdatable = errors.New("plugin declares no update source")
	// ErrRequiresNewerApp means the plugin's version floor exceeds the
	// running application.
	ErrRequiresNewerApp = errors.New("plugin requires a newer application version")
)

// Plugin is an installed plugin with its activation state.
type Plugin struct {
	Manifest *Manifest
	Dir      string
	Active   bool
}

// Manager discovers and manages plugins under a single directory. Each
// plugin lives in <dir>/<slug>/ with a plugin.json descriptor; activation
// state lives in a separate TOML file so plugin trees stay pristine.
type Manager struct {
	dir        string
	statePath  string
	backupDir  string
	appVersion string
	hooks      *hooks.Registry
	log        *zap.SugaredLogger

	// newSource builds the update feed client for one plugin.
	newSource func(m *Manifest) source.Source
}

// ManagerOptions wires a plugin manager.
type ManagerOptions struct {
	Dir        string
	StatePath  string
	BackupDir  string
	AppVersion string
	Hooks      *hooks.Registry
	Log        *zap.SugaredLogger
}

// NewManager creates a plugin manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewRegistry()
	}
	m := &Manager{
		dir:        opts.Dir,
		statePath:  opts.StatePath,
		backupDir:  opts.BackupDir,
		appVersion: opts.AppVersion,
		hooks:      opts.Hooks,
		log:        opts.Log,
	}
	m.newSource = func(man *Manifest) source.Source {
		return source.NewHTTPSource(man.UpdateURL, man.Version)
	}
	return m
}

// List returns all discovered plugins sorted by slug. Directories without a
// readable manifest are skipped with a warning rather than failing the whole
// listing.
func (m *Manager) List() ([]Plugin, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading plugins dir: %w", err)
	}

	st, err := loadState(m.statePath)
	if err != nil {
		return nil, fmt.Errorf("reading plugin state: %w", err)
	}

	var out []Plugin
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.dir, e.Name())
		man, err := LoadManifest(dir)
		if err != nil {
			m.log.Warnw("skipping plugin with bad manifest", "dir", dir, "error", err)
			continue
		}
		out = append(out, Plugin{Manifest: man, Dir: dir, Active: st.Active[man.Slug]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Slug < out[j].Manifest.Slug })
	return out, nil
}

// Get returns one plugin by slug.
func (m *Manager) Get(slug string) (*Plugin, error) {
	dir := filepath.Join(m.dir, slug)
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	man, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	st, err := loadState(m.statePath)
	if err != nil {
		return nil, err
	}
	return &Plugin{Manifest: man, Dir: dir, Active: st.Active[man.Slug]}, nil
}

// Install unpacks a plugin archive into the plugins directory. The archive
// must carry a plugin.json at its root; the slug decides the target
// directory. New plugins start deactivated.
func (m *Manager) Install(ctx context.Context, archivePath string) (*Plugin, error) {
	staging, err := os.MkdirTemp("", "lapisup-plugin-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := archive.Extract(archivePath, staging); err != nil {
		return nil, fmt.Errorf("unpacking plugin archive: %w", err)
	}

	man, err := LoadManifest(staging)
	if err != nil {
		return nil, err
	}
	// The directory-name fallback is meaningless for a staging dir, so an
	// archive install needs an explicit slug.
	if man.Slug == filepath.Base(staging) {
		return nil, &ManifestError{
			Path: filepath.Join(staging, ManifestFile),
			Err:  fmt.Errorf("slug is required"),
		}
	}
	if err := m.checkRequires(man); err != nil {
		return nil, err
	}

	dest := filepath.Join(m.dir, man.Slug)
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInstalled, man.Slug)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, dest); err != nil {
		// Rename fails across filesystems; fall back to a copy via re-extract.
		if err := os.MkdirAll(dest, 0755); err != nil {
			return nil, err
		}
		if err := archive.Extract(archivePath, dest); err != nil {
			_ = os.RemoveAll(dest)
			return nil, fmt.Errorf("unpacking plugin archive: %w", err)
		}
	}

	m.log.Infow("plugin installed", "slug", man.Slug, "version", man.Version)
	m.hooks.Do("plugin.installed", man.Slug, man.Version)
	return &Plugin{Manifest: man, Dir: dest, Active: false}, nil
}

// Activate marks a plugin active.
func (m *Manager) Activate(slug string) error {
	return m.setActive(slug, true)
}

// Deactivate marks a plugin inactive without touching its files.
func (m *Manager) Deactivate(slug string) error {
	return m.setActive(slug, false)
}

func (m *Manager) setActive(slug string, active bool) error {
	if _, err := m.Get(slug); err != nil {
		return err
	}
	st, err := loadState(m.statePath)
	if err != nil {
		return err
	}
	if active {
		st.Active[slug] = true
	} else {
		delete(st.Active, slug)
	}
	if err := saveState(m.statePath, st); err != nil {
		return err
	}
	if active {
		m.hooks.Do("plugin.activated", slug)
	} else {
		m.hooks.Do("plugin.deactivated", slug)
	}
	return nil
}

// Remove deletes a plugin's directory and drops its activation state.
func (m *Manager) Remove(slug string) error {
	p, err := m.Get(slug)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p.Dir); err != nil {
		return fmt.Errorf("removing plugin %s: %w", slug, err)
	}
	st, err := loadState(m.statePath)
	if err != nil {
		return err
	}
	delete(st.Active, slug)
	if err := saveState(m.statePath, st); err != nil {
		return err
	}
	m.hooks.Do("plugin.removed", slug)
	return nil
}

// Update runs the full update pipeline for one plugin, scoped to its
// directory: the plugin's own feed, its own backups, no dependency or
// migration commands.
func (m *Manager) Update(ctx context.Context, slug string, opts engine.PerformOptions) (*engine.Session, error) {
	p, err := m.Get(slug)
	if err != nil {
		return nil, err
	}
	if p.Manifest.UpdateURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotUpdatable, slug)
	}

	backups := backup.NewManager(p.Dir, filepath.Join(m.backupDir, "plugins", slug), nil)
	inst := installer.New(p.Dir, nil, nil, nil, nil, m.log)
	orch := engine.New(engine.Options{
		Source:         m.newSource(p.Manifest),
		Backups:        backups,
		Installer:      inst,
		Rollbacks:      rollback.New(p.Dir, backups, m.log),
		Hooks:          m.hooks,
		InstallRoot:    p.Dir,
		CurrentVersion: p.Manifest.Version,
		Log:            m.log,
	})
	return orch.Perform(ctx, opts)
}

func (m *Manager) checkRequires(man *Manifest) error {
	if man.Requires == "" || m.appVersion == "" {
		return nil
	}
	min, err := semver.NewVersion(man.Requires)
	if err != nil {
		return &ManifestError{
			Path: filepath.Join(m.dir, man.Slug, ManifestFile),
			Err:  fmt.Errorf("unparseable requires %q: %w", man.Requires, err),
		}
	}
	current, err := semver.NewVersion(m.appVersion)
	if err != nil {
		return fmt.Errorf("invalid application version %q: %w", m.appVersion, err)
	}
	if current.LessThan(min) {
		return fmt.Errorf("%w: %s needs %s, have %s", ErrRequiresNewerApp, man.Slug, min, current)
	}
	return nil
}

// Package backup snapshots the installation directory so a failed update can
// be rolled back.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lapis-cms/lapisup/internal/archive"
)

// timestampLayout names backup archives by creation time.
const timestampLayout = "2006-01-02-150405"

// ErrNoBackupsFound is returned when a restore is requested but no backup
// archive exists.
var ErrNoBackupsFound = errors.New("no backups found")

// BackupFailedError reports a snapshot that could not be written. The update
// pipeline must abort on it before any destructive step runs.
type BackupFailedError struct {
	Path string
	Err  error
}

func (e *BackupFailedError) Error() string {
	return fmt.Sprintf("backup failed: %s: %v", e.Path, e.Err)
}

func (e *BackupFailedError) Unwrap() error { return e.Err }

// Record describes a single backup archive.
type Record struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// Manager creates and enumerates backups of an installation root.
type Manager struct {
	installRoot string
	backupDir   string
	exclude     []string
}

// NewManager creates a backup manager. Paths in exclude are relative to the
// install root and are left out of snapshots.
func NewManager(installRoot, backupDir string, exclude []string) *Manager {
	return &Manager{
		installRoot: installRoot,
		backupDir:   backupDir,
		exclude:     exclude,
	}
}

// Create archives the installation root into a timestamped zip in the backup
// directory, creating the directory if needed.
func (m *Manager) Create() (*Record, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return nil, &BackupFailedError{Path: m.backupDir, Err: err}
	}

	now := time.Now().UTC()
	id := now.Format(timestampLayout)
	path := filepath.Join(m.backupDir, id+".zip")

	size, err := archive.Create(path, m.installRoot, m.excludePaths())
	if err != nil {
		_ = os.Remove(path)
		return nil, &BackupFailedError{Path: path, Err: err}
	}

	return &Record{
		ID:        id,
		Path:      path,
		CreatedAt: now,
		SizeBytes: size,
	}, nil
}

// List returns all backups sorted by creation time, newest first.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".zip" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".zip")
		createdAt, err := time.ParseInLocation(timestampLayout, id, time.UTC)
		if err != nil {
			// Foreign archives in the backup dir still count, ordered by mtime.
			createdAt = info.ModTime().UTC()
		}

		records = append(records, Record{
			ID:        id,
			Path:      filepath.Join(m.backupDir, entry.Name()),
			CreatedAt: createdAt,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Latest returns the most recently created backup.
func (m *Manager) Latest() (*Record, error) {
	records, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoBackupsFound
	}
	return &records[0], nil
}

// Delete removes a backup by ID.
func (m *Manager) Delete(id string) error {
	path := filepath.Join(m.backupDir, id+".zip")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", id)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// BackupDir returns the backup directory path.
func (m *Manager) BackupDir() string {
	return m.backupDir
}

// excludePaths merges configured excludes with the backup directory itself
// when it lives under the install root.
func (m *Manager) excludePaths() []string {
	exclude := append([]string{}, m.exclude...)

	rel, err := filepath.Rel(m.installRoot, m.backupDir)
	if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		exclude = append(exclude, filepath.ToSlash(rel))
	}
	return exclude
}

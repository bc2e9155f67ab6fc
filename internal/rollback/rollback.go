// Package rollback restores a prior backup over the installation root.
package rollback

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lapis-cms/lapisup/internal/archive"
	"github.com/lapis-cms/lapisup/internal/backup"
)

// RollbackFailedError is the most severe outcome in the update pipeline: the
// installation may be in an inconsistent state and needs manual intervention.
// It is never retried automatically.
type RollbackFailedError struct {
	Path string
	Err  error
}

func (e *RollbackFailedError) Error() string {
	return fmt.Sprintf("rollback from %s failed: %v (manual intervention required)", e.Path, e.Err)
}

func (e *RollbackFailedError) Unwrap() error { return e.Err }

// Manager restores backups.
type Manager struct {
	installRoot string
	backups     *backup.Manager
	log         *zap.SugaredLogger
}

// New creates a rollback manager restoring into installRoot from the given
// backup manager's archives.
func New(installRoot string, backups *backup.Manager, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		installRoot: installRoot,
		backups:     backups,
		log:         log,
	}
}

// Rollback extracts the backup archive at path over the installation root,
// overwriting current state. An empty path selects the most recently created
// backup; backup.ErrNoBackupsFound is returned when none exist.
func (m *Manager) Rollback(path string) error {
	if path == "" {
		rec, err := m.backups.Latest()
		if err != nil {
			return err
		}
		path = rec.Path
	}

	if _, err := os.Stat(path); err != nil {
		return &RollbackFailedError{Path: path, Err: err}
	}

	m.log.Infow("restoring backup", "backup", path, "root", m.installRoot)
	if err := archive.Extract(path, m.installRoot); err != nil {
		return &RollbackFailedError{Path: path, Err: err}
	}

	return nil
}

// Package installer applies a verified release artifact to the installation:
// extraction, dependency resolution, and schema migrations, in that order.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lapis-cms/lapisup/internal/archive"
)

// Step names used in install-phase errors.
const (
	StepDependencies = "dependencies"
	StepMigrations   = "migrations"
)

// maintenanceMarker is the file whose presence puts the application into
// maintenance mode.
const maintenanceMarker = ".maintenance"

// ErrExtractionFailed reports an artifact that could not be unpacked over the
// installation root.
var ErrExtractionFailed = errors.New("artifact extraction failed")

// CommandError reports a failed install subprocess. Output holds the
// command's combined stdout/stderr verbatim for diagnosis.
type CommandError struct {
	Step   string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
	if e.Output != "" {
		msg += "\nOutput: " + strings.TrimRight(e.Output, "\n")
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Installer extracts artifacts and runs post-extraction steps. Its side
// effects mutate the installation root and the application database and are
// irreversible without a prior backup.
type Installer struct {
	root       string
	depsCmd    []string
	migrateCmd []string
	cacheDirs  []string // relative to root, emptied during post-install
	runner     CommandRunner
	log        *zap.SugaredLogger
}

// New creates an installer for the given installation root. Empty command
// slices skip the corresponding step.
func New(root string, depsCmd, migrateCmd, cacheDirs []string, runner CommandRunner, log *zap.SugaredLogger) *Installer {
	if runner == nil {
		runner = &ExecRunner{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Installer{
		root:       root,
		depsCmd:    depsCmd,
		migrateCmd: migrateCmd,
		cacheDirs:  cacheDirs,
		runner:     runner,
		log:        log,
	}
}

// Install applies the artifact at artifactPath. Steps run strictly in order
// and the first failure aborts the rest.
func (i *Installer) Install(ctx context.Context, artifactPath string) error {
	i.log.Infow("extracting artifact", "artifact", artifactPath, "root", i.root)
	if err := archive.Extract(artifactPath, i.root); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if len(i.depsCmd) > 0 {
		i.log.Infow("resolving dependencies", "command", strings.Join(i.depsCmd, " "))
		out, err := i.runner.Run(ctx, i.root, i.depsCmd)
		if err != nil {
			return &CommandError{Step: StepDependencies, Output: string(out), Err: err}
		}
	}

	if len(i.migrateCmd) > 0 {
		i.log.Infow("applying migrations", "command", strings.Join(i.migrateCmd, " "))
		out, err := i.runner.Run(ctx, i.root, i.migrateCmd)
		if err != nil {
			return &CommandError{Step: StepMigrations, Output: string(out), Err: err}
		}
	}

	return nil
}

// PostInstall finalizes a successful install: cache directories are emptied,
// the installed version is recorded, and maintenance mode ends.
func (i *Installer) PostInstall(ctx context.Context, version string) error {
	for _, dir := range i.cacheDirs {
		path := filepath.Join(i.root, filepath.FromSlash(dir))
		if err := clearDir(path); err != nil {
			return fmt.Errorf("failed to clear cache dir %s: %w", dir, err)
		}
	}

	if version != "" {
		versionFile := filepath.Join(i.root, "VERSION")
		if err := os.WriteFile(versionFile, []byte(version+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to record installed version: %w", err)
		}
	}

	return i.LeaveMaintenance()
}

// EnterMaintenance drops a marker file that puts the application into
// maintenance mode while files change underneath it.
func (i *Installer) EnterMaintenance() error {
	path := filepath.Join(i.root, maintenanceMarker)
	content := fmt.Sprintf("down since %s\n", time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to enter maintenance mode: %w", err)
	}
	return nil
}

// LeaveMaintenance removes the maintenance marker if present.
func (i *Installer) LeaveMaintenance() error {
	err := os.Remove(filepath.Join(i.root, maintenanceMarker))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to leave maintenance mode: %w", err)
	}
	return nil
}

// clearDir removes the contents of dir, leaving dir itself in place. A
// missing dir is not an error.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/engine"
	"github.com/lapis-cms/lapisup/internal/interactive"
)

func newPerformCmd() *cobra.Command {
	var (
		targetVersion string
		force         bool
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "perform",
		Short: "Download and install an available update",
		Long: `Perform runs the full update pipeline: backup, download, verify,
install, dependency and migration steps. If an install step fails, the
backup taken at the start is restored automatically.

Examples:
  lapisup perform                  # Install the latest version
  lapisup perform --version 2.1.0  # Install a specific version
  lapisup perform --yes            # Skip the confirmation prompt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerform(cmd, targetVersion, force || yes)
		},
	}

	cmd.Flags().StringVar(&targetVersion, "version", "", "Install a specific version instead of the latest")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runPerform(cmd *cobra.Command, targetVersion string, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	orch, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}

	opts := engine.PerformOptions{
		Version: targetVersion,
		Force:   force,
	}
	if !force {
		if !interactive.IsTerminal() {
			return fmt.Errorf("confirmation needed but stdin is not a terminal (re-run with --yes)")
		}
		opts.Confirm = interactive.NewPrompter()
	}

	sess, err := orch.Perform(cmd.Context(), opts)
	if errors.Is(err, engine.ErrUpdateDeclined) {
		fmt.Println("Update cancelled.")
		return nil
	}
	if err != nil {
		return reportFailure(sess, err)
	}

	if sess.Backup != nil {
		fmt.Printf("✓ Updated to %s\n", sess.TargetVersion)
		fmt.Printf("Backup kept at %s\n", shortPath(sess.Backup.Path))
	} else {
		fmt.Printf("Already running %s, nothing to do\n", sess.TargetVersion)
	}
	return nil
}

// reportFailure explains a failed session: whether the tree was restored, and
// whether the operator has to step in.
func reportFailure(sess *engine.Session, cause error) error {
	if sess == nil {
		return cause
	}

	switch sess.State {
	case engine.StateRolledBack:
		fmt.Printf("Update to %s failed; the previous version was restored.\n", sess.TargetVersion)
		if sess.Backup != nil {
			fmt.Printf("Restored from %s\n", shortPath(sess.Backup.Path))
		}
	case engine.StateFailed:
		if sess.RollbackErr != nil {
			fmt.Println("Update failed AND the automatic rollback failed.")
			fmt.Printf("Rollback error: %v\n", sess.RollbackErr)
			if sess.Backup != nil {
				fmt.Printf("Manual intervention required: restore %s by hand with 'lapisup rollback %s'\n",
					shortPath(sess.Backup.Path), sess.Backup.Path)
			} else {
				fmt.Println("Manual intervention required: no backup is available.")
			}
		}
	}
	return fmt.Errorf("update failed: %w", cause)
}

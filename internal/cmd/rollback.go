package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/interactive"
	"github.com/lapis-cms/lapisup/internal/rollback"
)

func newRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback [backup-path]",
		Short: "Restore the installation from a backup",
		Long: `Rollback restores the installation root from a backup archive. With no
argument the most recent backup is used.

This overwrites the current installation; it asks for confirmation unless
--force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runRollback(path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")

	return cmd
}

func runRollback(backupPath string, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	backups := backupManager(cfg)

	// Resolve the target up front so the prompt can name it.
	if backupPath == "" {
		latest, err := backups.Latest()
		if err != nil {
			return err
		}
		backupPath = latest.Path
	}

	if !force {
		prompter := interactive.NewPrompter()
		ok, err := prompter.Confirm(fmt.Sprintf("Overwrite %s with backup %s?",
			cfg.App.InstallRoot, shortPath(backupPath)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Rollback cancelled.")
			return nil
		}
	}

	mgr := rollback.New(cfg.App.InstallRoot, backups, log)
	if err := mgr.Rollback(backupPath); err != nil {
		return err
	}

	fmt.Printf("✓ Restored from %s\n", shortPath(backupPath))
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/backup"
	"github.com/lapis-cms/lapisup/internal/output"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage installation backups",
		Long: `Backup manages snapshots of the installation root. The update pipeline
creates one automatically before every install; these commands let you
take, list, and prune them by hand.`,
	}

	cmd.AddCommand(newBackupCreateCmd())
	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupDeleteCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new backup",
		Long:  `Create archives the installation root into a timestamped backup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupCreate()
		},
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		Long:  `List displays all backups with their creation time and size, newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupList()
		},
	}
}

func newBackupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup",
		Long:  `Delete removes a backup by its ID.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupDelete(args[0])
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old backups",
		Long: `Prune deletes old backups, keeping only the most recent N.

By default, keeps the 10 most recent backups.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupPrune(keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of backups to keep")

	return cmd
}

func runBackupCreate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := backupManager(cfg)
	rec, err := manager.Create()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatText {
		return output.NewWriter(os.Stdout, format).Write(rec)
	}

	fmt.Printf("Backup created: %s\n", rec.ID)
	fmt.Printf("Location: %s\n", shortPath(rec.Path))
	fmt.Printf("Size: %s\n", formatSize(rec.SizeBytes))
	return nil
}

func runBackupList() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := backupManager(cfg)
	records, err := manager.List()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatText {
		return output.NewWriter(os.Stdout, format).Write(records)
	}

	if len(records) == 0 {
		fmt.Println("No backups found.")
		fmt.Printf("Backup directory: %s\n", shortPath(manager.BackupDir()))
		return nil
	}

	fmt.Printf("Backups stored in %s:\n\n", shortPath(manager.BackupDir()))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCreated\tSize")
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			rec.ID,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			formatSize(rec.SizeBytes),
		)
	}
	_ = w.Flush()
	return nil
}

func runBackupDelete(id string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := backupManager(cfg).Delete(id); err != nil {
		return err
	}

	fmt.Printf("Backup deleted: %s\n", id)
	return nil
}

func runBackupPrune(keep int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	result, err := backupManager(cfg).Prune(keep)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatText {
		return output.NewWriter(os.Stdout, format).Write(result)
	}

	if len(result.Deleted) == 0 {
		fmt.Printf("No backups to prune. Keeping %d backups.\n", result.Kept)
		return nil
	}

	fmt.Printf("Pruned %d backup(s), keeping %d:\n", len(result.Deleted), result.Kept)
	for _, rec := range result.Deleted {
		fmt.Printf("  - %s (%s)\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
)

func Execute(version, commit, date string) error {
	SetVersion(version, commit, date)

	rootCmd := &cobra.Command{
		Use:   "lapisup",
		Short: "Self-update manager for Lapis CMS installations",
		Long: `lapisup checks for, downloads, verifies, and installs updates for a
Lapis CMS installation, with automatic backup and rollback on failure.

Point it at an installation with a lapisup.yaml and run 'lapisup check'.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newPerformCmd())
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newCheckScheduledCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newPluginCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/output"
	"github.com/lapis-cms/lapisup/internal/source"
)

func newCheckCmd() *cobra.Command {
	var clearCache bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the release feed for an available update",
		Long: `Check queries the configured release feed and reports whether a newer
version is available. Results are cached; pass --clear-cache to force a
fresh query.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, clearCache)
		},
	}

	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Discard the cached check result first")

	return cmd
}

func runCheck(cmd *cobra.Command, clearCache bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	cache := buildCache(cfg)
	if clearCache {
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear check cache: %w", err)
		}
	}

	info, ok := cache.Load()
	if !ok {
		orch, err := buildOrchestrator(cfg, log)
		if err != nil {
			return err
		}
		info, err = orch.Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		if err := cache.Store(info); err != nil {
			log.Warnw("failed to cache check result", "error", err)
		}
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatText {
		return output.NewWriter(os.Stdout, format).Write(info)
	}

	printCheckResult(info)
	return nil
}

func printCheckResult(info *source.UpdateInfo) {
	fmt.Printf("Current version: %s\n", info.CurrentVersion)
	if !info.HasUpdate {
		fmt.Println("Already running the latest version")
		return
	}

	fmt.Printf("Update available: %s\n", info.LatestVersion)
	if info.ReleaseDate != "" {
		fmt.Printf("Released: %s\n", info.ReleaseDate)
	}
	if info.Changelog != "" {
		fmt.Println("\nChangelog:")
		fmt.Println(info.Changelog)
	}
	fmt.Printf("\nRun 'lapisup perform' to install\n")
}

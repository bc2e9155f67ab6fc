package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/config"
	"github.com/lapis-cms/lapisup/internal/engine"
)

func newCheckScheduledCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-scheduled",
		Short: "Periodic check for cron or systemd timers",
		Long: `Check-scheduled is the non-interactive entry point meant to run from a
cron job or systemd timer. It records the check result and, only when
update.auto is enabled and the current time falls inside the configured
maintenance window, installs the update without prompting.

Exits 0 whether or not an update is available; exits non-zero only when
the check itself (or an attempted install) fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckScheduled(cmd)
		},
	}
}

func runCheckScheduled(cmd *cobra.Command) error {
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

	auto := engine.Unattended{Enabled: cfg.Update.Auto.Enabled}
	if cfg.Update.Auto.Window != "" {
		// Validate already checked the window parses.
		w, err := config.ParseWindow(cfg.Update.Auto.Window)
		if err != nil {
			return err
		}
		auto.Window = w
	}

	res, err := orch.CheckScheduled(cmd.Context(), buildCache(cfg), auto)
	if err != nil {
		return err
	}

	if res.Performed {
		fmt.Printf("✓ Unattended update to %s installed\n", res.Session.TargetVersion)
		return nil
	}
	if res.Info.HasUpdate {
		fmt.Printf("Update %s available; run 'lapisup perform' to install\n", res.Info.LatestVersion)
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/engine"
	"github.com/lapis-cms/lapisup/internal/interactive"
	"github.com/lapis-cms/lapisup/internal/output"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage installed plugins",
		Long: `Plugin manages the plugins directory of the installation: list and
inspect installed plugins, install new ones from an archive, toggle
activation, update them from their own release feeds, and remove them.`,
	}

	cmd.AddCommand(newPluginListCmd())
	cmd.AddCommand(newPluginShowCmd())
	cmd.AddCommand(newPluginInstallCmd())
	cmd.AddCommand(newPluginActivateCmd())
	cmd.AddCommand(newPluginDeactivateCmd())
	cmd.AddCommand(newPluginUpdateCmd())
	cmd.AddCommand(newPluginRemoveCmd())

	return cmd
}

func newPluginListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginList()
		},
	}
}

func newPluginShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Show one plugin's manifest and state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginShow(args[0])
		},
	}
}

func newPluginInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <archive.zip>",
		Short: "Install a plugin from an archive",
		Long: `Install unpacks a plugin archive into the plugins directory. The
archive must carry a plugin.json descriptor at its root. New plugins
start deactivated; activate them with 'lapisup plugin activate'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginInstall(cmd, args[0])
		},
	}
}

func newPluginActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <slug>",
		Short: "Activate a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginSetActive(args[0], true)
		},
	}
}

func newPluginDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <slug>",
		Short: "Deactivate a plugin without removing its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginSetActive(args[0], false)
		},
	}
}

func newPluginUpdateCmd() *cobra.Command {
	var (
		force bool
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "update <slug>",
		Short: "Update a plugin from its release feed",
		Long: `Update runs the full update pipeline for one plugin, scoped to its
directory: its own feed, its own backup, rollback on failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginUpdate(cmd, args[0], force || yes)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newPluginRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <slug>",
		Short: "Remove a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginRemove(args[0])
		},
	}
}

func runPluginList() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	mgr, err := buildPluginManager(cfg, log)
	if err != nil {
		return err
	}
	list, err := mgr.List()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatText {
		return output.NewWriter(os.Stdout, format).Write(list)
	}

	if len(list) == 0 {
		fmt.Println("No plugins installed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLUG\tNAME\tVERSION\tSTATE")
	for _, p := range list {
		state := "inactive"
		if p.Active {
			state = "active"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Manifest.Slug, p.Manifest.Name, p.Manifest.Version, state)
	}
	_ = w.Flush()
	return nil
}

func runPluginShow(slug string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	mgr, err := buildPluginManager(cfg, log)
	if err != nil {
		return err
	}
	p, err := mgr.Get(slug)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format != output.FormatText {
		return output.NewWriter(os.Stdout, format).Write(p)
	}

	fmt.Printf("Name: %s\n", p.Manifest.Name)
	fmt.Printf("Slug: %s\n", p.Manifest.Slug)
	fmt.Printf("Version: %s\n", p.Manifest.Version)
	if p.Manifest.Description != "" {
		fmt.Printf("Description: %s\n", p.Manifest.Description)
	}
	if p.Manifest.UpdateURL != "" {
		fmt.Printf("Update feed: %s\n", p.Manifest.UpdateURL)
	}
	if p.Manifest.Requires != "" {
		fmt.Printf("Requires: Lapis %s or newer\n", p.Manifest.Requires)
	}
	if p.Active {
		fmt.Println("State: active")
	} else {
		fmt.Println("State: inactive")
	}
	fmt.Printf("Directory: %s\n", shortPath(p.Dir))
	return nil
}

func runPluginInstall(cmd *cobra.Command, archivePath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	mgr, err := buildPluginManager(cfg, log)
	if err != nil {
		return err
	}
	p, err := mgr.Install(cmd.Context(), archivePath)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Installed %s %s\n", p.Manifest.Slug, p.Manifest.Version)
	fmt.Printf("Run 'lapisup plugin activate %s' to enable it\n", p.Manifest.Slug)
	return nil
}

func runPluginSetActive(slug string, active bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	mgr, err := buildPluginManager(cfg, log)
	if err != nil {
		return err
	}

	if active {
		if err := mgr.Activate(slug); err != nil {
			return err
		}
		fmt.Printf("✓ Activated %s\n", slug)
	} else {
		if err := mgr.Deactivate(slug); err != nil {
			return err
		}
		fmt.Printf("✓ Deactivated %s\n", slug)
	}
	return nil
}

func runPluginUpdate(cmd *cobra.Command, slug string, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	mgr, err := buildPluginManager(cfg, log)
	if err != nil {
		return err
	}

	opts := engine.PerformOptions{Force: force}
	if !force {
		if !interactive.IsTerminal() {
			return fmt.Errorf("confirmation needed but stdin is not a terminal (re-run with --yes)")
		}
		opts.Confirm = interactive.NewPrompter()
	}

	sess, err := mgr.Update(cmd.Context(), slug, opts)
	if errors.Is(err, engine.ErrUpdateDeclined) {
		fmt.Println("Update cancelled.")
		return nil
	}
	if err != nil {
		return reportFailure(sess, err)
	}

	if sess.Backup != nil {
		fmt.Printf("✓ Updated %s to %s\n", slug, sess.TargetVersion)
	} else {
		fmt.Printf("%s already at %s, nothing to do\n", slug, sess.TargetVersion)
	}
	return nil
}

func runPluginRemove(slug string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	defer func() { _ = log.Sync() }()

	mgr, err := buildPluginManager(cfg, log)
	if err != nil {
		return err
	}
	if err := mgr.Remove(slug); err != nil {
		return err
	}

	fmt.Printf("✓ Removed %s\n", slug)
	return nil
}

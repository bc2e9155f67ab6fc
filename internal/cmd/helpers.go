package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lapis-cms/lapisup/internal/authz"
	"github.com/lapis-cms/lapisup/internal/backup"
	"github.com/lapis-cms/lapisup/internal/config"
	"github.com/lapis-cms/lapisup/internal/engine"
	"github.com/lapis-cms/lapisup/internal/hooks"
	"github.com/lapis-cms/lapisup/internal/installer"
	"github.com/lapis-cms/lapisup/internal/logging"
	"github.com/lapis-cms/lapisup/internal/plugins"
	"github.com/lapis-cms/lapisup/internal/rollback"
	"github.com/lapis-cms/lapisup/internal/source"
)

// Build info, set from main via SetVersion.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion records the build info stamped in by the linker.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

// loadConfig finds, parses, and validates the installation config.
func loadConfig() (*config.Config, error) {
	path, err := config.Find(configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func newLogger() *zap.SugaredLogger {
	return logging.New(verbose, quiet)
}

// buildSource assembles the release feed client from config.
func buildSource(cfg *config.Config, current string) *source.HTTPSource {
	src := source.NewHTTPSource(cfg.Source.URL, current).
		WithTimeout(cfg.Source.Timeout.Std()).
		WithRetries(cfg.Source.Retries, cfg.Source.RetryBackoff.Std())
	if cfg.Source.Token != "" {
		src = src.WithToken(cfg.Source.Token)
	}
	if len(cfg.Source.Params) > 0 {
		src = src.WithParams(cfg.Source.Params)
	}
	if !quiet && outputFormat == "text" {
		src = src.WithProgress(os.Stderr)
	}
	return src
}

func buildCache(cfg *config.Config) *source.CheckCache {
	return source.NewCheckCache(cfg.CacheDir, cfg.Source.CacheTTL.Std())
}

// buildOrchestrator wires the full update pipeline for the application.
func buildOrchestrator(cfg *config.Config, log *zap.SugaredLogger) (*engine.Orchestrator, error) {
	current, err := cfg.CurrentVersion()
	if err != nil {
		return nil, err
	}

	backups := backup.NewManager(cfg.App.InstallRoot, cfg.Backup.Dir, cfg.Backup.Exclude)
	inst := installer.New(cfg.App.InstallRoot,
		cfg.Update.DepsCommand,
		cfg.Update.MigrateCommand,
		cfg.Update.CacheDirs,
		&installer.ExecRunner{Timeout: cfg.Update.CommandTimeout.Std()},
		log)

	return engine.New(engine.Options{
		Source:    buildSource(cfg, current),
		Backups:   backups,
		Installer: inst,
		Rollbacks: rollback.New(cfg.App.InstallRoot, backups, log),
		Hooks:     hooks.NewRegistry(),
		Preflight: []authz.Predicate{
			authz.UpdatesEnabled(cfg.Update.Disabled),
			authz.WritableRoot(cfg.App.InstallRoot),
		},
		InstallRoot:    cfg.App.InstallRoot,
		CurrentVersion: current,
		Log:            log,
	}), nil
}

// buildPluginManager wires the plugin manager from config.
func buildPluginManager(cfg *config.Config, log *zap.SugaredLogger) (*plugins.Manager, error) {
	current, err := cfg.CurrentVersion()
	if err != nil {
		return nil, err
	}
	return plugins.NewManager(plugins.ManagerOptions{
		Dir:        cfg.Plugins.Dir,
		StatePath:  cfg.Plugins.StateFile,
		BackupDir:  cfg.Backup.Dir,
		AppVersion: current,
		Log:        log,
	}), nil
}

// backupManager builds the standalone backup manager for the backup
// subcommands.
func backupManager(cfg *config.Config) *backup.Manager {
	return backup.NewManager(cfg.App.InstallRoot, cfg.Backup.Dir, cfg.Backup.Exclude)
}

// formatSize formats a byte size as a human-readable string.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// shortPath trims the home directory prefix for display.
func shortPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if rel, err := filepath.Rel(home, path); err == nil && !filepath.IsAbs(rel) && rel != ".." && !hasDotDotPrefix(rel) {
		return filepath.Join("~", rel)
	}
	return path
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// Package config handles lapisup configuration parsing and location
// resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Duration wraps time.Duration so config files can say "30s" or "6h".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler (used by TOML and JSON
// via the yaml/toml struct tags).
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig identifies the managed installation.
type AppConfig struct {
	Name        string `yaml:"name" toml:"name" json:"name"`
	InstallRoot string `yaml:"install_root" toml:"install_root" json:"install_root"`
	// Version pins the current version; empty reads <install_root>/VERSION.
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
}

// SourceConfig describes the release feed.
type SourceConfig struct {
	URL          string            `yaml:"url" toml:"url" json:"url"`
	Token        string            `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"`
	Params       map[string]string `yaml:"params,omitempty" toml:"params,omitempty" json:"params,omitempty"`
	Timeout      Duration          `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries      int               `yaml:"retries,omitempty" toml:"retries,omitempty" json:"retries,omitempty"`
	RetryBackoff Duration          `yaml:"retry_backoff,omitempty" toml:"retry_backoff,omitempty" json:"retry_backoff,omitempty"`
	CacheTTL     Duration          `yaml:"cache_ttl,omitempty" toml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
}

// BackupConfig describes where snapshots go.
type BackupConfig struct {
	Dir     string   `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" json:"exclude,omitempty"`
}

// AutoConfig gates unattended installs by the scheduled checker.
type AutoConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	// Window is a local-time maintenance window ("02:00-04:00"); unattended
	// installs only run inside it.
	Window string `yaml:"window,omitempty" toml:"window,omitempty" json:"window,omitempty"`
}

// UpdateConfig describes the install steps.
type UpdateConfig struct {
	DepsCommand    []string   `yaml:"deps_command,omitempty" toml:"deps_command,omitempty" json:"deps_command,omitempty"`
	MigrateCommand []string   `yaml:"migrate_command,omitempty" toml:"migrate_command,omitempty" json:"migrate_command,omitempty"`
	CacheDirs      []string   `yaml:"cache_dirs,omitempty" toml:"cache_dirs,omitempty" json:"cache_dirs,omitempty"`
	CommandTimeout Duration   `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty" json:"command_timeout,omitempty"`
	Disabled       bool       `yaml:"disabled,omitempty" toml:"disabled,omitempty" json:"disabled,omitempty"`
	Auto           AutoConfig `yaml:"auto,omitempty" toml:"auto,omitempty" json:"auto,omitempty"`
}

// PluginsConfig describes the plugin tree.
type PluginsConfig struct {
	Dir       string `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"`
	StateFile string `yaml:"state_file,omitempty" toml:"state_file,omitempty" json:"state_file,omitempty"`
}

// Config is the parsed lapisup configuration.
type Config struct {
	App      AppConfig     `yaml:"app" toml:"app" json:"app"`
	Source   SourceConfig  `yaml:"source" toml:"source" json:"source"`
	Backup   BackupConfig  `yaml:"backup,omitempty" toml:"backup,omitempty" json:"backup,omitempty"`
	Update   UpdateConfig  `yaml:"update,omitempty" toml:"update,omitempty" json:"update,omitempty"`
	Plugins  PluginsConfig `yaml:"plugins,omitempty" toml:"plugins,omitempty" json:"plugins,omitempty"`
	CacheDir string        `yaml:"cache_dir,omitempty" toml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
}

// applyDefaults fills unset fields after parsing.
func (c *Config) applyDefaults() {
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(30 * time.Second)
	}
	if c.Source.Retries == 0 {
		c.Source.Retries = 3
	}
	if c.Source.RetryBackoff == 0 {
		c.Source.RetryBackoff = Duration(2 * time.Second)
	}
	if c.Source.CacheTTL == 0 {
		c.Source.CacheTTL = Duration(6 * time.Hour)
	}
	if c.Backup.Dir == "" && c.App.InstallRoot != "" {
		c.Backup.Dir = filepath.Join(c.App.InstallRoot, "backups")
	}
	if c.Update.CommandTimeout == 0 {
		c.Update.CommandTimeout = Duration(10 * time.Minute)
	}
	if len(c.Update.CacheDirs) == 0 {
		c.Update.CacheDirs = []string{"storage/cache"}
	}
	if c.Plugins.Dir == "" && c.App.InstallRoot != "" {
		c.Plugins.Dir = filepath.Join(c.App.InstallRoot, "plugins")
	}
	if c.Plugins.StateFile == "" && c.Plugins.Dir != "" {
		c.Plugins.StateFile = filepath.Join(c.Plugins.Dir, "plugins.toml")
	}
	if c.CacheDir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			c.CacheDir = filepath.Join(base, "lapisup")
		}
	}
}

// CurrentVersion returns the pinned version from the config, or the content
// of the installation's VERSION file.
func (c *Config) CurrentVersion() (string, error) {
	if c.App.Version != "" {
		return c.App.Version, nil
	}

	path := filepath.Join(c.App.InstallRoot, "VERSION")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to determine current version (set app.version or create %s): %w", path, err)
	}

	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("version file %s is empty", path)
	}
	return v, nil
}

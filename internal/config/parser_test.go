package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
app:
  name: lapis
  install_root: /var/www/lapis
source:
  url: https://releases.example.com/feed.json
  token: tok123
  params:
    channel: stable
  timeout: 10s
  retries: 5
update:
  deps_command: ["composer", "install"]
  auto:
    enabled: true
    window: "02:00-04:00"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "lapisup.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.InstallRoot != "/var/www/lapis" {
		t.Errorf("InstallRoot = %s, want /var/www/lapis", cfg.App.InstallRoot)
	}
	if cfg.Source.Token != "tok123" {
		t.Errorf("Token = %s, want tok123", cfg.Source.Token)
	}
	if cfg.Source.Timeout.Std() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Source.Timeout.Std())
	}
	if cfg.Source.Retries != 5 {
		t.Errorf("Retries = %d, want 5", cfg.Source.Retries)
	}
	if cfg.Source.Params["channel"] != "stable" {
		t.Errorf("Params = %v, want channel=stable", cfg.Source.Params)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `
app:
  install_root: /var/www/lapis
source:
  url: https://releases.example.com/feed.json
`
	cfg, err := Load(writeConfig(t, "lapisup.yaml", minimal))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Timeout.Std() != 30*time.Second {
		t.Errorf("default Timeout = %v, want 30s", cfg.Source.Timeout.Std())
	}
	if cfg.Source.Retries != 3 {
		t.Errorf("default Retries = %d, want 3", cfg.Source.Retries)
	}
	if cfg.Source.CacheTTL.Std() != 6*time.Hour {
		t.Errorf("default CacheTTL = %v, want 6h", cfg.Source.CacheTTL.Std())
	}
	if cfg.Backup.Dir != filepath.Join("/var/www/lapis", "backups") {
		t.Errorf("default Backup.Dir = %s", cfg.Backup.Dir)
	}
	if cfg.Plugins.Dir != filepath.Join("/var/www/lapis", "plugins") {
		t.Errorf("default Plugins.Dir = %s", cfg.Plugins.Dir)
	}
	if cfg.Update.CommandTimeout.Std() != 10*time.Minute {
		t.Errorf("default CommandTimeout = %v, want 10m", cfg.Update.CommandTimeout.Std())
	}
}

func TestLoadTOML(t *testing.T) {
	content := `
[app]
install_root = "/var/www/lapis"

[source]
url = "https://releases.example.com/feed.json"
timeout = "45s"
`
	cfg, err := Load(writeConfig(t, "lapisup.toml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Timeout.Std() != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Source.Timeout.Std())
	}
}

func TestLoadJSON(t *testing.T) {
	content := `{
  "app": {"install_root": "/var/www/lapis"},
  "source": {"url": "https://releases.example.com/feed.json"}
}`
	cfg, err := Load(writeConfig(t, "lapisup.json", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.InstallRoot != "/var/www/lapis" {
		t.Errorf("InstallRoot = %s", cfg.App.InstallRoot)
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Format
	}{
		{"json object", `{"app": {}}`, FormatJSON},
		{"toml section", "[app]\ninstall_root = \"/x\"", FormatTOML},
		{"toml assignment", "key = \"value\"", FormatTOML},
		{"yaml", "app:\n  install_root: /x", FormatYAML},
		{"comments then yaml", "# hello\napp:\n  name: x", FormatYAML},
		{"empty", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffFormat([]byte(tt.content)); got != tt.want {
				t.Errorf("sniffFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing install_root", "source:\n  url: https://example.com/feed.json"},
		{"missing source url", "app:\n  install_root: /x"},
		{"relative url", "app:\n  install_root: /x\nsource:\n  url: feed.json"},
		{"bad scheme", "app:\n  install_root: /x\nsource:\n  url: ftp://example.com/feed"},
		{"auto without window", "app:\n  install_root: /x\nsource:\n  url: https://example.com/f\nupdate:\n  auto:\n    enabled: true"},
		{"bad window", "app:\n  install_root: /x\nsource:\n  url: https://example.com/f\nupdate:\n  auto:\n    enabled: true\n    window: \"2am-4am\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "lapisup.yaml", tt.content)); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestCurrentVersionFromFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "VERSION"), []byte("1.5.0\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := &Config{App: AppConfig{InstallRoot: root}}
	v, err := cfg.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if v != "1.5.0" {
		t.Errorf("CurrentVersion() = %s, want 1.5.0", v)
	}

	// Pinned version wins over the file
	cfg.App.Version = "1.6.0"
	v, err = cfg.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if v != "1.6.0" {
		t.Errorf("CurrentVersion() = %s, want 1.6.0", v)
	}
}

func TestCurrentVersionMissing(t *testing.T) {
	cfg := &Config{App: AppConfig{InstallRoot: t.TempDir()}}
	if _, err := cfg.CurrentVersion(); err == nil {
		t.Error("CurrentVersion() expected error without VERSION file")
	}
}

func TestFindExplicitPath(t *testing.T) {
	path := writeConfig(t, "custom.yaml", validYAML)

	got, err := Find(path)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != path {
		t.Errorf("Find() = %s, want %s", got, path)
	}

	if _, err := Find(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Find() expected error for missing explicit path")
	}
}

func TestFindEnvVar(t *testing.T) {
	path := writeConfig(t, "env.yaml", validYAML)
	t.Setenv("LAPISUP_CONFIG", path)

	got, err := Find("")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != path {
		t.Errorf("Find() = %s, want %s", got, path)
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lapisup.yaml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}

	// Template must not overwrite without force
	if err := WriteTemplate(path, false); err == nil {
		t.Error("WriteTemplate() expected error for existing file")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Errorf("WriteTemplate(force) error = %v", err)
	}
}

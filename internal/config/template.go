package config

import (
	"fmt"
	"os"
)

// configTemplate is written by `lapisup init`.
const configTemplate = `# lapisup configuration
app:
  name: lapis
  install_root: /var/www/lapis
  # version: 1.5.0   # omit to read <install_root>/VERSION

source:
  url: https://releases.example.com/lapis/feed.json
  # token: ""
  # params:
  #   channel: stable
  timeout: 30s
  retries: 3
  retry_backoff: 2s
  cache_ttl: 6h

backup:
  # dir: /var/backups/lapis   # default: <install_root>/backups
  exclude:
    - storage/cache
    - storage/logs

update:
  deps_command: ["composer", "install", "--no-dev", "--no-interaction"]
  migrate_command: ["php", "artisan", "migrate", "--force"]
  cache_dirs:
    - storage/cache
  command_timeout: 10m
  auto:
    enabled: false
    # window: "02:00-04:00"   # required when enabled

plugins:
  # dir: /var/www/lapis/plugins
`

// WriteTemplate writes a starter config file to path. Existing files are
// only overwritten with force.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}

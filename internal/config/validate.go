package config

import (
	"fmt"
	"net/url"
)

// Validate checks the config for internally consistent, usable values.
func (c *Config) Validate() error {
	if c.App.InstallRoot == "" {
		return fmt.Errorf("app.install_root is required")
	}
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}

	u, err := url.Parse(c.Source.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.url must be an absolute URL: %q", c.Source.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source.url must use http or https, got %q", u.Scheme)
	}

	if c.Source.Retries < 1 {
		return fmt.Errorf("source.retries must be at least 1, got %d", c.Source.Retries)
	}
	if c.Source.Timeout < 0 || c.Source.RetryBackoff < 0 {
		return fmt.Errorf("source timeouts must be non-negative")
	}

	if c.Update.Auto.Enabled {
		if c.Update.Auto.Window == "" {
			return fmt.Errorf("update.auto.window is required when update.auto.enabled is set (unattended installs only run inside a maintenance window)")
		}
		if _, err := ParseWindow(c.Update.Auto.Window); err != nil {
			return err
		}
	}

	return nil
}

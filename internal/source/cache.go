package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cacheEntry is the on-disk shape of a cached check result.
type cacheEntry struct {
	CheckedAt time.Time  `json:"checked_at"`
	Info      UpdateInfo `json:"info"`
}

// CheckCache persists the last check result as a TTL-bound JSON blob so that
// repeated checks (and the scheduled checker's "update available" note for a
// human operator) avoid redundant network calls.
type CheckCache struct {
	dir string
	ttl time.Duration
}

// NewCheckCache creates a cache rooted at dir. A non-positive ttl disables
// reads; writes still happen so the scheduled checker leaves a record.
func NewCheckCache(dir string, ttl time.Duration) *CheckCache {
	return &CheckCache{dir: dir, ttl: ttl}
}

// Load returns the cached check result if it exists and has not expired.
func (c *CheckCache) Load() (*UpdateInfo, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	data, err := os.ReadFile(c.path())
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if time.Since(entry.CheckedAt) > c.ttl {
		return nil, false
	}

	return &entry.Info, true
}

// Store writes a fresh check result.
func (c *CheckCache) Store(info *UpdateInfo) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cacheEntry{CheckedAt: time.Now(), Info: *info}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal check cache: %w", err)
	}

	if err := os.WriteFile(c.path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write check cache: %w", err)
	}
	return nil
}

// Clear removes the cached result if present.
func (c *CheckCache) Clear() error {
	err := os.Remove(c.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear check cache: %w", err)
	}
	return nil
}

func (c *CheckCache) path() string {
	return filepath.Join(c.dir, "check.json")
}

// Package source talks to a release feed: it answers "is there a newer
// version" and downloads release artifacts.
package source

import (
	"context"
	"errors"
	"fmt"
)

// UpdateInfo describes the outcome of a version check. It is constructed
// fresh on every check and never mutated.
type UpdateInfo struct {
	HasUpdate      bool   `json:"has_update"`
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version"`
	DownloadURL    string `json:"download_url"`
	ReleaseDate    string `json:"release_date,omitempty"`
	Changelog      string `json:"changelog,omitempty"`
	Checksum       string `json:"checksum,omitempty"`
	MinVersion     string `json:"min_version,omitempty"`
}

// Source checks for and downloads updates.
type Source interface {
	// Check queries the feed and compares the reported version against the
	// current one.
	Check(ctx context.Context) (*UpdateInfo, error)

	// Download fetches the artifact for the given version ("" or "latest"
	// means the newest release) into a temporary file and returns its path
	// together with the metadata it was downloaded against.
	Download(ctx context.Context, version string) (string, *UpdateInfo, error)
}

// Check-phase and download-phase failures. All of them occur before anything
// destructive has happened.
var (
	ErrSourceUnavailable = errors.New("update source unavailable")
	ErrInvalidResponse   = errors.New("invalid update source response")
	ErrDownloadFailed    = errors.New("artifact download failed")
)

// MissingFieldError reports a feed response missing a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("update source response missing required field: %s", e.Field)
}

package verify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lapis-cms/lapisup/internal/archive"
)

// buildArtifact zips files into a release archive and returns its path.
func buildArtifact(t *testing.T, files map[string]string) string {
	t.Helper()
	src := t.TempDir()
	for name, content := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	out := filepath.Join(t.TempDir(), "artifact.zip")
	if _, err := archive.Create(out, src, nil); err != nil {
		t.Fatalf("archive.Create() error = %v", err)
	}
	return out
}

func TestVerifyValidArtifact(t *testing.T) {
	path := buildArtifact(t, map[string]string{
		"release.json": `{"version": "2.0.0", "min_version": "1.0.0"}`,
		"index.php":    "<?php",
	})

	sum, err := Checksum(path)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}

	v := New()
	if err := v.Verify(path, sum); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	// Prefixed checksums are accepted too
	if err := v.Verify(path, "sha256:"+sum); err != nil {
		t.Errorf("Verify() with prefixed checksum error = %v", err)
	}

	// No checksum supplied skips the hash comparison
	if err := v.Verify(path, ""); err != nil {
		t.Errorf("Verify() without checksum error = %v", err)
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	path := buildArtifact(t, map[string]string{
		"release.json": `{"version": "2.0.0"}`,
	})

	v := New()
	err := v.Verify(path, "0000000000000000000000000000000000000000000000000000000000000000")

	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Verify() error = %v, want ChecksumMismatchError", err)
	}
	if mismatch.Actual == "" || mismatch.Expected == "" {
		t.Errorf("ChecksumMismatchError missing hashes: %+v", mismatch)
	}
}

func TestVerifyMissingManifest(t *testing.T) {
	path := buildArtifact(t, map[string]string{
		"index.php": "<?php",
	})

	if err := New().Verify(path, ""); !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("Verify() error = %v, want ErrInvalidArchive", err)
	}
}

func TestVerifyBadManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"not json", "nope"},
		{"missing version", `{"notes": "x"}`},
		{"wrong type", `{"version": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := buildArtifact(t, map[string]string{"release.json": tt.manifest})
			if err := New().Verify(path, ""); !errors.Is(err, ErrInvalidArchive) {
				t.Errorf("Verify() error = %v, want ErrInvalidArchive", err)
			}
		})
	}
}

func TestVerifyNotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := New().Verify(path, ""); !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("Verify() error = %v, want ErrInvalidArchive", err)
	}
}

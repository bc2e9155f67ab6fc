// Package verify validates downloaded release artifacts before they are
// trusted for installation.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lapis-cms/lapisup/internal/archive"
)

// ManifestEntry is the manifest file every release archive must carry at its
// root.
const ManifestEntry = "release.json"

// ErrInvalidArchive reports an artifact whose structure does not look like a
// release archive.
var ErrInvalidArchive = errors.New("invalid release archive")

// ChecksumMismatchError reports a downloaded artifact whose content hash does
// not match the hash the feed promised.
type ChecksumMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// manifestSchema is the minimal shape required of release.json.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "min_version": {"type": "string"},
    "notes": {"type": "string"}
  }
}`

// Verifier validates artifacts. It only reads the artifact file and has no
// other side effects.
type Verifier struct {
	schema *jsonschema.Schema
}

// New creates a verifier with the built-in release manifest schema.
func New() *Verifier {
	return &Verifier{
		schema: jsonschema.MustCompileString("release.schema.json", manifestSchema),
	}
}

// Verify checks the artifact at path. When expectedChecksum is non-empty the
// artifact's SHA-256 is compared against it first; then the archive must
// contain a release manifest that satisfies the manifest schema.
func (v *Verifier) Verify(path, expectedChecksum string) error {
	if expectedChecksum != "" {
		actual, err := Checksum(path)
		if err != nil {
			return err
		}
		expected := normalizeChecksum(expectedChecksum)
		if !strings.EqualFold(actual, expected) {
			return &ChecksumMismatchError{Expected: expected, Actual: actual}
		}
	}

	has, err := archive.HasEntry(path, ManifestEntry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if !has {
		return fmt.Errorf("%w: missing %s", ErrInvalidArchive, ManifestEntry)
	}

	data, err := archive.ReadEntry(path, ManifestEntry)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: malformed %s: %v", ErrInvalidArchive, ManifestEntry, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArchive, ManifestEntry, err)
	}

	return nil
}

// Checksum returns the hex-encoded SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeChecksum strips an optional algorithm prefix such as "sha256:".
func normalizeChecksum(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

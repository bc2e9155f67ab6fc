// Package archive creates and extracts the zip archives used for release
// artifacts and installation backups.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Create writes a zip archive of root to dst and returns the archive size in
// bytes. Paths listed in exclude are skipped, matched against the
// slash-separated path relative to root (a match excludes the whole subtree).
// The destination file itself is always skipped if it lives under root.
func Create(dst, root string, exclude []string) (int64, error) {
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if absPath, err := filepath.Abs(path); err == nil && absPath == absDst {
			return nil
		}
		for _, ex := range exclude {
			if rel == ex || strings.HasPrefix(rel, ex+"/") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		if d.IsDir() {
			hdr.Name += "/"
		} else {
			hdr.Method = zip.Deflate
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("failed to archive %s: %w", root, err)
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to write archive: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Extract unpacks the zip archive at src into dst, overwriting existing
// files. Entry names that would escape dst are rejected.
func Extract(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		target, err := sanitizePath(dst, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", target, err)
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

// ReadEntry returns the contents of a single named entry in the archive at
// src. Names use forward slashes relative to the archive root.
func ReadEntry(src, name string) ([]byte, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
			}
			defer func() { _ = rc.Close() }()
			return io.ReadAll(rc)
		}
	}

	return nil, fmt.Errorf("entry not found in archive: %s", name)
}

// HasEntry reports whether the archive at src contains the named entry.
func HasEntry(src, name string) (bool, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return false, fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	mode := f.Mode()
	if mode == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// sanitizePath joins name onto dst and rejects entries that traverse outside
// the destination root.
func sanitizePath(dst, name string) (string, error) {
	target := filepath.Join(dst, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal archive entry path: %s", name)
	}
	return target, nil
}

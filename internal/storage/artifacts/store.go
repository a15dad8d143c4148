// Package artifacts implements the artifact store: durable, checksum
// verified storage of uploaded version archives on the local filesystem.
// Writes go through a temp file, fsync, then atomic rename so a crash
// mid-upload never leaves a partially written artifact at its final path.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Store is a directory of content-named artifact files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Write streams r to a new artifact file named version.ext, verifying its
// SHA-256 checksum against expectedChecksum if non-empty. It returns the
// artifact's path (relative to the store root), its size, and its
// computed checksum. The write goes through a temp file in the same
// directory, fsync, then os.Rename so readers never observe a partial
// file at the final path.
func (s *Store) Write(version, ext string, r io.Reader, expectedChecksum string) (path string, size int64, checksum string, err error) {
	if ext == "" {
		ext = "tar.gz"
	}
	filename := fmt.Sprintf("%s.%s", version, ext)
	finalPath := filepath.Join(s.dir, filename)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed away

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		tmp.Close()
		return "", 0, "", fmt.Errorf("writing artifact: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, "", fmt.Errorf("fsync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, "", fmt.Errorf("closing artifact: %w", err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if expectedChecksum != "" && expectedChecksum != sum {
		return "", 0, "", fmt.Errorf("checksum mismatch: expected %s, got %s", expectedChecksum, sum)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", 0, "", fmt.Errorf("finalizing artifact: %w", err)
	}

	return filename, n, sum, nil
}

// Open opens an artifact for reading by its stored path.
func (s *Store) Open(path string) (*os.File, os.FileInfo, error) {
	full := filepath.Join(s.dir, path)
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// ServeDownload streams an artifact to w with the headers the agent's
// download client expects: Content-Length, a Content-Disposition
// attachment filename, and an X-Checksum-SHA256 header carrying the
// version's recorded checksum (manual header composition, since
// http.ServeContent has no hook to add custom headers alongside Range
// support).
func ServeDownload(w http.ResponseWriter, r *http.Request, f *os.File, info os.FileInfo, filename string, size int64, checksum string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("X-Checksum-SHA256", checksum)
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

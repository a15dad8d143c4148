package artifacts

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractTarGz extracts a gzip-compressed tar stream into destDir,
// rejecting any entry whose name would escape destDir via ".." segments,
// an absolute path, or a symlink target outside the tree. Directory
// modes and regular file modes are preserved; other entry types
// (devices, sockets) are rejected.
func ExtractTarGz(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0700); err != nil {
				return fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
			}
			if err := writeRegularFile(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("writing %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink, tar.TypeLink:
			if _, err := safeJoin(destDir, hdr.Linkname); err != nil {
				return fmt.Errorf("entry %s: link target escapes archive root: %w", hdr.Name, err)
			}
			// symlinks are recorded but not created; the agent never
			// needs to follow links inside an extracted service tree.
		default:
			return fmt.Errorf("entry %s: unsupported tar entry type %d", hdr.Name, hdr.Typeflag)
		}
	}
}

func writeRegularFile(target string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// safeJoin joins destDir and name, refusing any result that would
// escape destDir after cleaning (an absolute name, or one with enough
// ".." segments to climb out of the tree).
func safeJoin(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("entry %q: absolute paths are not allowed", name)
	}
	cleaned := filepath.Clean(filepath.Join(destDir, name))
	destClean := filepath.Clean(destDir)
	if cleaned != destClean && !strings.HasPrefix(cleaned, destClean+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes extraction root", name)
	}
	return cleaned, nil
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Manifest describes an offline update bundle, mirroring the shape the
// server writes alongside an uploaded artifact.
type Manifest struct {
	Version      string `json:"version"`
	Checksum     string `json:"checksum"`
	Artifact     string `json:"artifact"`
	ReleaseNotes string `json:"release_notes,omitempty"`
}

const manifestFilename = "manifest.json"

// defaultArtifactName is used when a manifest omits the artifact field.
const defaultArtifactName = "update.tar.gz"

// ApplyFromFile applies an update from a single artifact file. If
// version or checksum are empty, they are filled in from a
// manifest.json found alongside the artifact, if any; explicit flags
// always win over the manifest. If no checksum is available from
// either source, verification is skipped with a warning rather than
// refused, per the offline-apply contract.
func ApplyFromFile(ctx context.Context, tx *Transaction, logger *slog.Logger, filePath, version, checksum string) error {
	if logger == nil {
		logger = slog.Default()
	}

	manifestPath := filepath.Join(filepath.Dir(filePath), manifestFilename)
	if m, err := readManifest(manifestPath); err == nil {
		if version == "" {
			version = m.Version
		}
		if checksum == "" {
			checksum = m.Checksum
		}
		if m.ReleaseNotes != "" {
			logger.Info("release notes", "version", m.Version, "notes", m.ReleaseNotes)
		}
	}

	if version == "" {
		return fmt.Errorf("no version supplied and none found in %s", manifestFilename)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading artifact file: %w", err)
	}

	fetch := func(context.Context) ([]byte, error) { return data, nil }
	return tx.Apply(ctx, version, checksum, fetch)
}

// ApplyFromDirectory applies an update from a directory containing a
// manifest.json and the artifact it references.
func ApplyFromDirectory(ctx context.Context, tx *Transaction, logger *slog.Logger, dirPath string) error {
	manifestPath := filepath.Join(dirPath, manifestFilename)
	m, err := readManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", manifestPath, err)
	}
	if m.Artifact == "" {
		m.Artifact = defaultArtifactName
	}

	artifactPath := filepath.Join(dirPath, m.Artifact)
	return ApplyFromFile(ctx, tx, logger, artifactPath, m.Version, m.Checksum)
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

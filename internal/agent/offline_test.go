package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFromFile_ExplicitVersionAndChecksum(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "update.tar.gz")
	require.NoError(t, os.WriteFile(artifactPath, data, 0o644))

	err := ApplyFromFile(context.Background(), tx, testLogger(), artifactPath, "3.0.0", checksum)
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", tx.ReadCurrentVersion())
}

func TestApplyFromFile_ManifestAutoDetect(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "update.tar.gz")
	require.NoError(t, os.WriteFile(artifactPath, data, 0o644))

	manifest := Manifest{Version: "4.1.0", Checksum: checksum, Artifact: "update.tar.gz", ReleaseNotes: "fixes stuff"}
	mdata, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFilename), mdata, 0o644))

	err = ApplyFromFile(context.Background(), tx, testLogger(), artifactPath, "", "")
	require.NoError(t, err)
	assert.Equal(t, "4.1.0", tx.ReadCurrentVersion())
}

func TestApplyFromFile_ExplicitOverridesManifest(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "update.tar.gz")
	require.NoError(t, os.WriteFile(artifactPath, data, 0o644))

	manifest := Manifest{Version: "4.1.0", Checksum: "wrongwrongwrong", Artifact: "update.tar.gz"}
	mdata, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFilename), mdata, 0o644))

	err = ApplyFromFile(context.Background(), tx, testLogger(), artifactPath, "5.0.0", checksum)
	require.NoError(t, err)
	assert.Equal(t, "5.0.0", tx.ReadCurrentVersion())
}

func TestApplyFromDirectory(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "update.tar.gz"), data, 0o644))

	manifest := Manifest{Version: "6.0.0", Checksum: checksum, Artifact: "update.tar.gz"}
	mdata, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFilename), mdata, 0o644))

	err = ApplyFromDirectory(context.Background(), tx, testLogger(), dir)
	require.NoError(t, err)
	assert.Equal(t, "6.0.0", tx.ReadCurrentVersion())
}

func TestApplyFromDirectory_ManifestOmitsArtifact_DefaultsToUpdateTarGz(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "update.tar.gz"), data, 0o644))

	manifest := Manifest{Version: "7.0.0", Checksum: checksum}
	mdata, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFilename), mdata, 0o644))

	err = ApplyFromDirectory(context.Background(), tx, testLogger(), dir)
	require.NoError(t, err)
	assert.Equal(t, "7.0.0", tx.ReadCurrentVersion())
}

func TestApplyFromFile_NoVersionAnywhere(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "update.tar.gz")
	require.NoError(t, os.WriteFile(artifactPath, []byte("not a real archive"), 0o644))

	err := ApplyFromFile(context.Background(), tx, testLogger(), artifactPath, "", "")
	require.Error(t, err)
}

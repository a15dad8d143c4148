package agent

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// buildArtifact packs a single top-level directory "app/" containing
// the given files into a gzip+tar byte stream, mirroring how a real
// release artifact is laid out.
func buildArtifact(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "app/", Typeflag: tar.TypeDir, Mode: 0755}))
	for name, content := range files {
		hdr := &tar.Header{Name: "app/" + name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newTestConfig(t *testing.T) *agentconfig.Config {
	t.Helper()
	dir := t.TempDir()
	return &agentconfig.Config{
		ServerURL:          "http://example.invalid",
		APIKey:             "k",
		ServiceDir:         filepath.Join(dir, "service"),
		BackupDir:          filepath.Join(dir, "backups"),
		PollInterval:       time.Second,
		RestartCommand:     "true",
		HealthCheckTimeout: 5 * time.Second,
	}
}

func TestApply_FreshInstall_Success(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())

	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	fetch := func(context.Context) ([]byte, error) { return data, nil }
	err := tx.Apply(context.Background(), "1.0.0", checksum, fetch)
	require.NoError(t, err)

	version := tx.ReadCurrentVersion()
	assert.Equal(t, "1.0.0", version)

	content, err := os.ReadFile(filepath.Join(cfg.ServiceDir, "main.sh"))
	require.NoError(t, err)
	assert.Equal(t, "echo hi", string(content))
}

func TestApply_ChecksumMismatch_NoChangeToServiceDir(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.MkdirAll(cfg.ServiceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ServiceDir, versionFile), []byte("0.9.0"), 0o644))

	tx := NewTransaction(cfg, testLogger())
	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})

	fetch := func(context.Context) ([]byte, error) { return data, nil }
	err := tx.Apply(context.Background(), "1.0.0", "deadbeef", fetch)
	require.Error(t, err)

	assert.Equal(t, "0.9.0", tx.ReadCurrentVersion())
}

func TestApply_RestartFailure_RollsBack(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.MkdirAll(cfg.ServiceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ServiceDir, versionFile), []byte("0.9.0"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ServiceDir, "old.txt"), []byte("old"), 0o644))
	cfg.RestartCommand = "false"

	tx := NewTransaction(cfg, testLogger())
	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	fetch := func(context.Context) ([]byte, error) { return data, nil }
	err := tx.Apply(context.Background(), "1.0.0", checksum, fetch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRolledBack))

	assert.Equal(t, "0.9.0", tx.ReadCurrentVersion())
	content, err := os.ReadFile(filepath.Join(cfg.ServiceDir, "old.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(content))
}

func TestApply_NoChecksum_SkipsVerificationButProceeds(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())
	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})

	fetch := func(context.Context) ([]byte, error) { return data, nil }
	err := tx.Apply(context.Background(), "2.0.0", "", fetch)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", tx.ReadCurrentVersion())
}

func TestApply_DownloadFailure_ServiceDirUntouched(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.MkdirAll(cfg.ServiceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ServiceDir, versionFile), []byte("0.9.0"), 0o644))

	tx := NewTransaction(cfg, testLogger())
	fetch := func(context.Context) ([]byte, error) { return nil, assertErr{} }
	err := tx.Apply(context.Background(), "1.0.0", "", fetch)
	require.Error(t, err)
	assert.Equal(t, "0.9.0", tx.ReadCurrentVersion())
}

type assertErr struct{}

func (assertErr) Error() string { return "network error" }

func TestReadCurrentVersion_Missing(t *testing.T) {
	cfg := newTestConfig(t)
	tx := NewTransaction(cfg, testLogger())
	assert.Equal(t, "unknown", tx.ReadCurrentVersion())
}

func TestFindExtractedRoot_SingleTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app", "bin"), 0o755))
	root, err := findExtractedRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), root)
}

func TestFindExtractedRoot_MultipleEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	root, err := findExtractedRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestVerifyChecksum_AcceptsSha256Prefix(t *testing.T) {
	data := []byte("hello")
	sum := sha256.Sum256(data)
	prefixed := "sha256:" + hex.EncodeToString(sum[:])
	assert.NoError(t, verifyChecksum(data, prefixed))
}

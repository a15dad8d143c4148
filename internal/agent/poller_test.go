package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-dm/deployment-manager/internal/api/dto"
)

func TestPoller_Tick_NoUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checkin", r.URL.Path)
		assert.Equal(t, "testkey", r.Header.Get("X-API-Key"))
		json.NewEncoder(w).Encode(dto.CheckinResponse{Action: "none"})
	}))
	defer server.Close()

	cfg := newTestConfig(t)
	cfg.ServerURL = server.URL
	cfg.APIKey = "testkey"

	p := NewPoller(cfg, testLogger())
	immediate := p.tick(context.Background())
	assert.False(t, immediate)
}

func TestPoller_Tick_UpdateAppliedAndReported(t *testing.T) {
	data := buildArtifact(t, map[string]string{"main.sh": "echo hi"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	var reportedSuccess bool
	var reportedVersion string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/checkin", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.CheckinResponse{
			Action:        "update",
			TargetVersion: "9.9.9",
			ArtifactURL:   "/api/artifacts/9.9.9",
			Checksum:      checksum,
		})
	})
	mux.HandleFunc("/api/artifacts/9.9.9", func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	})
	mux.HandleFunc("/api/update-result", func(w http.ResponseWriter, r *http.Request) {
		var req dto.UpdateResultRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reportedSuccess = req.Success
		reportedVersion = req.Version
		json.NewEncoder(w).Encode(dto.UpdateResultResponse{Message: "ok", Version: req.Version})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := newTestConfig(t)
	cfg.ServerURL = server.URL
	cfg.APIKey = "testkey"

	p := NewPoller(cfg, testLogger())
	immediate := p.tick(context.Background())

	assert.True(t, immediate)
	assert.True(t, reportedSuccess)
	assert.Equal(t, "9.9.9", reportedVersion)
	assert.Equal(t, "9.9.9", p.tx.ReadCurrentVersion())
}

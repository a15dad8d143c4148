package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-dm/deployment-manager/internal/api/dto"
	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

func TestAPIClient_Checkin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		var req dto.CheckinRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "online", req.Status)
		json.NewEncoder(w).Encode(dto.CheckinResponse{Action: "none"})
	}))
	defer server.Close()

	c := NewAPIClient(&agentconfig.Config{ServerURL: server.URL, APIKey: "secret"})
	version := "1.0.0"
	resp, err := c.Checkin(context.Background(), &version, "online")
	require.NoError(t, err)
	assert.Equal(t, "none", resp.Action)
}

func TestAPIClient_Checkin_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := NewAPIClient(&agentconfig.Config{ServerURL: server.URL, APIKey: "secret"})
	_, err := c.Checkin(context.Background(), nil, "online")
	require.Error(t, err)
}

func TestAPIClient_DownloadArtifact_RelativeURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/artifacts/1.0.0", r.URL.Path)
		w.Write([]byte("artifact-bytes"))
	}))
	defer server.Close()

	c := NewAPIClient(&agentconfig.Config{ServerURL: server.URL, APIKey: "secret"})
	data, err := c.DownloadArtifact(context.Background(), "/api/artifacts/1.0.0", downloadTimeout)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(data))
}

func TestAPIClient_ReportResult(t *testing.T) {
	var gotSuccess bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.UpdateResultRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotSuccess = req.Success
		json.NewEncoder(w).Encode(dto.UpdateResultResponse{Message: "ok"})
	}))
	defer server.Close()

	c := NewAPIClient(&agentconfig.Config{ServerURL: server.URL, APIKey: "secret"})
	err := c.ReportResult(context.Background(), "1.0.0", true, false, "")
	require.NoError(t, err)
	assert.True(t, gotSuccess)
}

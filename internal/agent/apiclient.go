package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sam-dm/deployment-manager/internal/api/dto"
	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

// defaultRPCTimeout bounds check-in and result calls; artifact downloads
// use their own, longer timeout (see Transaction's download stage).
const defaultRPCTimeout = 30 * time.Second

// APIClient talks to a deployment manager server on behalf of the agent.
type APIClient struct {
	serverURL string
	apiKey    string
	client    *http.Client
}

// NewAPIClient builds an APIClient from the agent configuration.
func NewAPIClient(cfg *agentconfig.Config) *APIClient {
	return &APIClient{
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:    cfg.APIKey,
		client:    &http.Client{Timeout: defaultRPCTimeout},
	}
}

// Checkin reports the current version and status, returning the
// server's directive.
func (c *APIClient) Checkin(ctx context.Context, currentVersion *string, status string) (*dto.CheckinResponse, error) {
	body, err := json.Marshal(dto.CheckinRequest{CurrentVersion: currentVersion, Status: status})
	if err != nil {
		return nil, fmt.Errorf("encoding checkin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/checkin", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("checkin failed: %s - %s", resp.Status, string(text))
	}

	var out dto.CheckinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding checkin response: %w", err)
	}
	return &out, nil
}

// DownloadArtifact fetches the artifact bytes from a URL that may be a
// server-relative path (e.g. "/api/artifacts/1.2.0") or absolute.
func (c *APIClient) DownloadArtifact(ctx context.Context, artifactURL string, timeout time.Duration) ([]byte, error) {
	url := artifactURL
	if !strings.HasPrefix(url, "http") {
		url = c.serverURL + artifactURL
	}

	dlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact download failed: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading artifact body: %w", err)
	}
	return data, nil
}

// ReportResult reports the outcome of an update attempt. rolledBack
// indicates the agent successfully restored the pre-update backup after
// success was false, distinct from an uncompensated failure.
func (c *APIClient) ReportResult(ctx context.Context, version string, success, rolledBack bool, errMsg string) error {
	body, err := json.Marshal(dto.UpdateResultRequest{Version: version, Success: success, RolledBack: rolledBack, ErrorMessage: errMsg})
	if err != nil {
		return fmt.Errorf("encoding update result: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultRPCTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.serverURL+"/api/update-result", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reporting update result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("report failed: %s - %s", resp.Status, string(text))
	}
	return nil
}

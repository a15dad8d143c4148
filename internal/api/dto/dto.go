// Package dto holds the JSON request/response shapes for the DMS HTTP
// API, validated with go-playground/validator struct tags the way the
// teacher's handler request models are.
package dto

import "github.com/sam-dm/deployment-manager/internal/models"

// CheckinRequest is the body of POST /api/checkin.
type CheckinRequest struct {
	CurrentVersion *string `json:"current_version,omitempty"`
	Status         string  `json:"status" validate:"required,oneof=online offline error"`
}

// CheckinResponse is the directive returned to an agent's check-in.
type CheckinResponse struct {
	Action        string              `json:"action"`
	TargetVersion string              `json:"target_version,omitempty"`
	ArtifactURL   string              `json:"artifact_url,omitempty"`
	Checksum      string              `json:"checksum,omitempty"`
	Config        *models.ClientConfig `json:"config,omitempty"`
}

// UpdateResultRequest is the body of POST /api/update-result.
type UpdateResultRequest struct {
	Version      string `json:"version" validate:"required"`
	Success      bool   `json:"success"`
	RolledBack   bool   `json:"rolled_back,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// UpdateResultResponse acknowledges a reported update outcome.
type UpdateResultResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Error   string `json:"error,omitempty"`
}

// RegisterClientRequest is the body of POST /api/clients.
type RegisterClientRequest struct {
	Name   string              `json:"name" validate:"required,min=1,max=255"`
	Config *models.ClientConfig `json:"config,omitempty"`
}

// RegisterClientResponse returns the newly minted bearer token once.
type RegisterClientResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// UpdateClientConfigRequest is the body of PUT /api/clients/{id}/config.
type UpdateClientConfigRequest struct {
	Config models.ClientConfig `json:"config"`
}

// DeployRequest is the body of POST /api/clients/{id}/deploy.
type DeployRequest struct {
	Version string `json:"version" validate:"required"`
}

// ClientResponse is the public view of a Client — APIKey is included
// only on registration, never on subsequent reads.
type ClientResponse struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	CurrentVersion *string             `json:"current_version,omitempty"`
	TargetVersion  *string             `json:"target_version,omitempty"`
	LastSeen       *string             `json:"last_seen,omitempty"`
	Status         models.ClientStatus `json:"status"`
	Config         models.ClientConfig `json:"config"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

// VersionResponse is the public view of a Version.
type VersionResponse struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	ArtifactSize int64  `json:"artifact_size"`
	Checksum     string `json:"checksum"`
	ReleaseNotes string `json:"release_notes,omitempty"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
}

// UploadVersionResponse acknowledges a successful artifact upload.
type UploadVersionResponse struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"artifact_size"`
}

func ToClientResponse(c *models.Client) ClientResponse {
	resp := ClientResponse{
		ID:             c.ID,
		Name:           c.Name,
		CurrentVersion: c.CurrentVersion,
		TargetVersion:  c.TargetVersion,
		Status:         c.Status,
		Config:         c.Config,
		CreatedAt:      c.CreatedAt.Format(timeLayout),
		UpdatedAt:      c.UpdatedAt.Format(timeLayout),
	}
	if c.LastSeen != nil {
		seen := c.LastSeen.Format(timeLayout)
		resp.LastSeen = &seen
	}
	return resp
}

func ToVersionResponse(v *models.Version) VersionResponse {
	return VersionResponse{
		ID:           v.ID,
		Version:      v.Version,
		ArtifactSize: v.ArtifactSize,
		Checksum:     v.Checksum,
		ReleaseNotes: v.ReleaseNotes,
		IsActive:     v.IsActive,
		CreatedAt:    v.CreatedAt.Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

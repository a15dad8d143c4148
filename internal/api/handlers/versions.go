package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sam-dm/deployment-manager/internal/api/dto"
	"github.com/sam-dm/deployment-manager/internal/apierrors"
	"github.com/sam-dm/deployment-manager/internal/storage"
)

const maxUploadBytes = 1 << 30 // 1GiB ceiling on a single artifact upload

// UploadVersion handles POST /api/versions (multipart: version, artifact, release_notes?).
func (h *Deployments) UploadVersion(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("invalid multipart form: "+err.Error()).WithRequestID(h.reqID(r)))
		return
	}

	version := strings.TrimSpace(r.FormValue("version"))
	if version == "" {
		apierrors.WriteError(w, apierrors.ValidationError("version is required").WithRequestID(h.reqID(r)))
		return
	}
	releaseNotes := r.FormValue("release_notes")

	file, header, err := r.FormFile("artifact")
	if err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("artifact file is required").WithRequestID(h.reqID(r)))
		return
	}
	defer file.Close()

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	if strings.HasSuffix(header.Filename, ".tar.gz") {
		ext = "tar.gz"
	}

	v, err := h.Service.UploadVersion(r.Context(), version, releaseNotes, ext, http.MaxBytesReader(w, file, maxUploadBytes))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrValidation):
			apierrors.WriteError(w, apierrors.ValidationError(err.Error()).WithRequestID(h.reqID(r)))
		case errors.Is(err, storage.ErrConflict):
			apierrors.WriteError(w, apierrors.Conflict("version already exists").WithRequestID(h.reqID(r)))
		default:
			h.Logger.Error("version upload failed", "version", version, "error", err)
			apierrors.WriteError(w, apierrors.InternalError("upload failed").WithRequestID(h.reqID(r)))
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, dto.UploadVersionResponse{
		ID:       v.ID,
		Version:  v.Version,
		Checksum: v.Checksum,
		Size:     v.ArtifactSize,
	})
}

// ListVersions handles GET /api/versions.
func (h *Deployments) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.Service.ListVersions(r.Context())
	if err != nil {
		apierrors.WriteError(w, apierrors.InternalError("listing versions").WithRequestID(h.reqID(r)))
		return
	}
	out := make([]dto.VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, dto.ToVersionResponse(v))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetVersion handles GET /api/versions/{version}.
func (h *Deployments) GetVersion(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	v, err := h.Service.GetVersion(r.Context(), version)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierrors.WriteError(w, apierrors.NotFound("version not found").WithRequestID(h.reqID(r)))
			return
		}
		apierrors.WriteError(w, apierrors.InternalError("looking up version").WithRequestID(h.reqID(r)))
		return
	}
	h.writeJSON(w, http.StatusOK, dto.ToVersionResponse(v))
}

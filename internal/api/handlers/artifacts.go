package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sam-dm/deployment-manager/internal/apierrors"
	"github.com/sam-dm/deployment-manager/internal/storage"
	"github.com/sam-dm/deployment-manager/internal/storage/artifacts"
)

// DownloadArtifact handles GET /api/artifacts/{version}.
func (h *Deployments) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
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

	f, info, err := h.Service.Artifacts.Open(v.ArtifactPath)
	if err != nil {
		// Version row present but blob missing is a critical
		// inconsistency that must be surfaced, not swallowed.
		h.Logger.Error("artifact missing for known version", "version", version, "path", v.ArtifactPath, "error", err)
		apierrors.WriteError(w, apierrors.New(apierrors.CodeInternalError, "artifact_missing").WithRequestID(h.reqID(r)))
		return
	}
	defer f.Close()

	artifacts.ServeDownload(w, r, f, info, info.Name(), v.ArtifactSize, v.Checksum)
}

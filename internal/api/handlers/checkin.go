// Package handlers implements the gorilla/mux HTTP handlers for the DMS
// API, delegating all state-machine logic to internal/service.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sam-dm/deployment-manager/internal/api/dto"
	"github.com/sam-dm/deployment-manager/internal/api/middleware"
	"github.com/sam-dm/deployment-manager/internal/apierrors"
	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/service"
)

// Deployments wires the service layer into HTTP handlers.
type Deployments struct {
	Service *service.Deployments
	Logger  *slog.Logger
}

func NewDeployments(svc *service.Deployments, logger *slog.Logger) *Deployments {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployments{Service: svc, Logger: logger}
}

func (h *Deployments) reqID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func (h *Deployments) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("malformed request body").WithRequestID(h.reqID(r)))
		return false
	}
	return true
}

func (h *Deployments) validate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.ValidateStruct(v); err != nil {
		apierrors.WriteError(w, apierrors.ValidationError(err.Error()).WithRequestID(h.reqID(r)))
		return false
	}
	return true
}

func (h *Deployments) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Checkin handles POST /api/checkin.
func (h *Deployments) Checkin(w http.ResponseWriter, r *http.Request) {
	client, ok := middleware.GetClient(r.Context())
	if !ok {
		apierrors.WriteError(w, apierrors.AuthError("unauthenticated").WithRequestID(h.reqID(r)))
		return
	}

	var req dto.CheckinRequest
	if !h.decodeJSON(w, r, &req) || !h.validate(w, r, &req) {
		return
	}

	directive, err := h.Service.Checkin(r.Context(), client.APIKey, req.CurrentVersion, models.ClientStatus(req.Status))
	if err != nil {
		h.Logger.Error("checkin failed", "client_id", client.ID, "error", err)
		apierrors.WriteError(w, apierrors.InternalError("checkin failed").WithRequestID(h.reqID(r)))
		return
	}

	resp := dto.CheckinResponse{Action: string(directive.Action)}
	if directive.Action == service.ActionUpdate {
		resp.TargetVersion = directive.TargetVersion
		resp.ArtifactURL = directive.ArtifactURL
		resp.Checksum = directive.Checksum
		resp.Config = directive.Config
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// UpdateResult handles POST /api/update-result.
func (h *Deployments) UpdateResult(w http.ResponseWriter, r *http.Request) {
	client, ok := middleware.GetClient(r.Context())
	if !ok {
		apierrors.WriteError(w, apierrors.AuthError("unauthenticated").WithRequestID(h.reqID(r)))
		return
	}

	var req dto.UpdateResultRequest
	if !h.decodeJSON(w, r, &req) || !h.validate(w, r, &req) {
		return
	}

	if err := h.Service.Result(r.Context(), client.APIKey, req.Version, req.Success, req.RolledBack, req.ErrorMessage); err != nil {
		h.Logger.Error("update result failed", "client_id", client.ID, "error", err)
		apierrors.WriteError(w, apierrors.InternalError("recording update result failed").WithRequestID(h.reqID(r)))
		return
	}

	h.writeJSON(w, http.StatusOK, dto.UpdateResultResponse{
		Message: "result recorded",
		Version: req.Version,
	})
}

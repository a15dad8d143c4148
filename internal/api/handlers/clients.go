package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sam-dm/deployment-manager/internal/api/dto"
	"github.com/sam-dm/deployment-manager/internal/apierrors"
	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/semverx"
	"github.com/sam-dm/deployment-manager/internal/storage"
)

// RegisterClient handles POST /api/clients.
func (h *Deployments) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterClientRequest
	if !h.decodeJSON(w, r, &req) || !h.validate(w, r, &req) {
		return
	}

	cfg := models.ClientConfig{}
	if req.Config != nil {
		cfg = *req.Config
	}

	client, err := h.Service.RegisterClient(r.Context(), req.Name, cfg)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			apierrors.WriteError(w, apierrors.Conflict("a client with this name already exists").WithRequestID(h.reqID(r)))
			return
		}
		h.Logger.Error("client registration failed", "name", req.Name, "error", err)
		apierrors.WriteError(w, apierrors.InternalError("registration failed").WithRequestID(h.reqID(r)))
		return
	}

	h.writeJSON(w, http.StatusCreated, dto.RegisterClientResponse{
		ID:     client.ID,
		Name:   client.Name,
		APIKey: client.APIKey,
	})
}

// ListClients handles GET /api/clients.
func (h *Deployments) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Service.ListClients(r.Context())
	if err != nil {
		apierrors.WriteError(w, apierrors.InternalError("listing clients").WithRequestID(h.reqID(r)))
		return
	}
	out := make([]dto.ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, dto.ToClientResponse(c))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetClient handles GET /api/clients/{id}.
func (h *Deployments) GetClient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := h.Service.GetClient(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierrors.WriteError(w, apierrors.NotFound("client not found").WithRequestID(h.reqID(r)))
			return
		}
		apierrors.WriteError(w, apierrors.InternalError("looking up client").WithRequestID(h.reqID(r)))
		return
	}
	h.writeJSON(w, http.StatusOK, dto.ToClientResponse(c))
}

// UpdateClientConfig handles PUT /api/clients/{id}/config.
func (h *Deployments) UpdateClientConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req dto.UpdateClientConfigRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	c, err := h.Service.UpdateClientConfig(r.Context(), id, req.Config)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierrors.WriteError(w, apierrors.NotFound("client not found").WithRequestID(h.reqID(r)))
			return
		}
		apierrors.WriteError(w, apierrors.InternalError("updating client config").WithRequestID(h.reqID(r)))
		return
	}
	h.writeJSON(w, http.StatusOK, dto.ToClientResponse(c))
}

// Deploy handles POST /api/clients/{id}/deploy.
func (h *Deployments) Deploy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req dto.DeployRequest
	if !h.decodeJSON(w, r, &req) || !h.validate(w, r, &req) {
		return
	}
	if err := semverx.Validate(req.Version); err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("invalid version: "+err.Error()).WithRequestID(h.reqID(r)))
		return
	}

	if err := h.Service.Deploy(r.Context(), id, req.Version); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierrors.WriteError(w, apierrors.NotFound("client or version not found").WithRequestID(h.reqID(r)))
			return
		}
		apierrors.WriteError(w, apierrors.InternalError("deploy failed").WithRequestID(h.reqID(r)))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "deploy scheduled", "version": req.Version})
}

package handlers

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/permissions"
	"net/http"
)

type createRoleRequest struct {
	Name        string                  `json:"name" validate:"required,max=100"`
	Color       string                  `json:"color" validate:"omitempty,hexcolor6"`
	Permissions *permissions.Permission `json:"permissions"`
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.ManageRoles); err != nil {
		h.writeError(w, err)
		return
	}

	var req createRoleRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	mask := permissions.DefaultEveryone()
	if req.Permissions != nil {
		mask = *req.Permissions
		if mask < 0 || mask&^permissions.All != 0 {
			h.writeError(w, apperr.Invalid("permissions contains unknown bits"))
			return
		}
	}
	if err := h.gate.RequireGrantable(ctx, userIDFrom(r), serverID, mask); err != nil {
		h.writeError(w, err)
		return
	}

	role, err := h.store.CreateRole(ctx, serverID, req.Name, req.Color, mask)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, role)
}

func (h *Handler) GetRoleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.RequireMember(ctx, userIDFrom(r), serverID); err != nil {
		h.writeError(w, err)
		return
	}

	roles, err := h.store.Roles(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, roles)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roleID, err := pathID(r, "roleID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	role, err := h.store.RoleByID(ctx, roleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), role.ServerID, permissions.ManageRoles); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.DeleteRole(ctx, roleID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMessage(w, "Role deleted")
}
